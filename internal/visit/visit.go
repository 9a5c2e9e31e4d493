// Package visit holds the visit record consumed from the practice backend and
// the transcript segments produced for it.
package visit

import (
	"fmt"
	"time"
)

// Status is the scheduling status of a visit.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusScheduled, StatusCompleted, StatusCanceled}

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown visit status %q", s)
}

// Type is the clinical visit type tag.
type Type string

const (
	TypeRoutine     Type = "routine"
	TypeGlasses     Type = "glasses"
	TypeContacts    Type = "contacts"
	TypeSurgery     Type = "surgery"
	TypePostSurgery Type = "postsurgery"
	TypeEmergency   Type = "emergency"
	TypeSpecial     Type = "special"
)

// Types lists every visit type in display order.
var Types = []Type{
	TypeRoutine, TypeGlasses, TypeContacts, TypeSurgery,
	TypePostSurgery, TypeEmergency, TypeSpecial,
}

var typeLabels = map[Type]string{
	TypeRoutine:     "Routine Eye Exam",
	TypeGlasses:     "Glasses Prescription",
	TypeContacts:    "Contact Lens Fitting",
	TypeSurgery:     "Surgery Consultation",
	TypePostSurgery: "Post-Operative Check",
	TypeEmergency:   "Emergency Visit",
	TypeSpecial:     "Special (structured summary)",
}

// ParseType validates s against the known visit types.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown visit type %q", s)
}

// Structured reports whether visits of this type use the editable summary
// outline rather than a freeform bulleted summary.
func (t Type) Structured() bool {
	return t == TypeSpecial
}

// Label returns the human-readable name of the type.
func (t Type) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Visit is a scheduled or completed appointment between a doctor and a patient.
type Visit struct {
	ID              int       `json:"id"`
	Status          Status    `json:"status"`
	Type            Type      `json:"type"`
	DoctorName      string    `json:"doctor_name"`
	PatientName     string    `json:"patient_name"`
	Notes           string    `json:"notes"`
	AppointmentTime time.Time `json:"appointment_time"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Find returns the visit with the given id from visits.
func Find(visits []Visit, id int) (Visit, bool) {
	for _, v := range visits {
		if v.ID == id {
			return v, true
		}
	}
	return Visit{}, false
}
