// Package devbackend is an in-memory stand-in for the transcription and
// appointment service, speaking the same HTTP contract as the real one.
package devbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fakeyudi/oculist/internal/visit"
)

const maxUploadBytes = 64 << 20

// Transcriber turns an uploaded recording into a transcript and summary.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, visitType visit.Type, bullets []string) ([]visit.Segment, string, error)
}

type transcription struct {
	Transcript []visit.Segment
	Summary    string
	AudioPath  string
	Bullets    []string
}

// Server holds the in-memory visits, transcriptions and audio files.
type Server struct {
	transcriber Transcriber

	mu             sync.RWMutex
	visits         map[int]visit.Visit
	transcriptions map[int]transcription
	audio          map[string][]byte
}

// New returns an empty server. A nil transcriber uses EchoTranscriber.
func New(t Transcriber) *Server {
	if t == nil {
		t = EchoTranscriber{}
	}
	return &Server{
		transcriber:    t,
		visits:         make(map[int]visit.Visit),
		transcriptions: make(map[int]transcription),
		audio:          make(map[string][]byte),
	}
}

// Seed adds or replaces visits.
func (s *Server) Seed(visits ...visit.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range visits {
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now().UTC()
		}
		s.visits[v.ID] = v
	}
}

// DemoVisits returns a small schedule for local use.
func DemoVisits(now time.Time) []visit.Visit {
	day := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC)
	return []visit.Visit{
		{ID: 1, Status: visit.StatusScheduled, Type: visit.TypeRoutine, DoctorName: "Dr. Iris Vega", PatientName: "Ann Lee", AppointmentTime: day},
		{ID: 2, Status: visit.StatusScheduled, Type: visit.TypeSpecial, DoctorName: "Dr. Iris Vega", PatientName: "Bob Okafor", AppointmentTime: day.Add(45 * time.Minute)},
		{ID: 3, Status: visit.StatusScheduled, Type: visit.TypeContacts, DoctorName: "Dr. Tomas Reyes", PatientName: "Chen Wu", AppointmentTime: day.Add(90 * time.Minute)},
		{ID: 4, Status: visit.StatusCanceled, Type: visit.TypeGlasses, DoctorName: "Dr. Tomas Reyes", PatientName: "Dana Kim", AppointmentTime: day.Add(3 * time.Hour)},
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/appointment", s.listAppointments)
	r.Post("/upload", s.upload)
	r.Get("/transcription/{id}", s.getTranscription)
	r.Post("/update-notes", s.updateNotes)
	r.Post("/update-status", s.updateStatus)
	r.Post("/update-type", s.updateType)
	r.Get("/uploads/{name}", s.serveAudio)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type appointmentJSON struct {
	ID              int    `json:"id"`
	Status          string `json:"status"`
	Type            string `json:"type"`
	DoctorName      string `json:"doctor_name"`
	PatientName     string `json:"patient_name"`
	Notes           string `json:"notes"`
	AppointmentTime string `json:"appointment_time"`
	CreatedAt       string `json:"created_at"`
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]appointmentJSON, 0, len(s.visits))
	for _, v := range s.visits {
		out = append(out, appointmentJSON{
			ID:              v.ID,
			Status:          string(v.Status),
			Type:            string(v.Type),
			DoctorName:      v.DoctorName,
			PatientName:     v.PatientName,
			Notes:           v.Notes,
			AppointmentTime: v.AppointmentTime.Format("2006-01-02T15:04:05"),
			CreatedAt:       v.CreatedAt.Format("2006-01-02T15:04:05"),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	id, ok := s.formVisit(w, r)
	if !ok {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "reading file", http.StatusBadRequest)
		return
	}

	visitType := visit.TypeRoutine
	if raw := r.FormValue("appointment_type"); raw != "" {
		t, err := visit.ParseType(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		visitType = t
	}

	var bullets []string
	if raw := r.FormValue("bullets"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &bullets); err != nil {
			http.Error(w, "bullets must be a JSON array of strings", http.StatusBadRequest)
			return
		}
	}

	segs, summaryText, err := s.transcriber.Transcribe(r.Context(), audio, visitType, bullets)
	if err != nil {
		slog.Error("transcription failed", "visit_id", id, "err", err)
		http.Error(w, "transcription failed", http.StatusInternalServerError)
		return
	}

	name := fmt.Sprintf("%d-%s.webm", id, uuid.NewString())
	s.mu.Lock()
	s.audio[name] = audio
	s.transcriptions[id] = transcription{
		Transcript: segs,
		Summary:    summaryText,
		AudioPath:  "uploads/" + name,
		Bullets:    bullets,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"transcript": segs,
		"summary":    summaryText,
	})
}

func (s *Server) getTranscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.mu.RLock()
	tr, ok := s.transcriptions[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "transcription not found", http.StatusNotFound)
		return
	}
	body := map[string]any{
		"transcript": tr.Transcript,
		"summary":    tr.Summary,
		"audio_path": tr.AudioPath,
	}
	if len(tr.Bullets) > 0 {
		body["bullets"] = tr.Bullets
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) updateNotes(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, func(v *visit.Visit) error {
		v.Notes = r.FormValue("notes")
		return nil
	})
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, func(v *visit.Visit) error {
		st, err := visit.ParseStatus(r.FormValue("status"))
		if err != nil {
			return err
		}
		v.Status = st
		return nil
	})
}

func (s *Server) updateType(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, func(v *visit.Visit) error {
		t, err := visit.ParseType(r.FormValue("appointment_type"))
		if err != nil {
			return err
		}
		v.Type = t
		return nil
	})
}

// update applies fn to the visit named by the appointment_id form field.
func (s *Server) update(w http.ResponseWriter, r *http.Request, fn func(*visit.Visit) error) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, ok := s.formVisit(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.visits[id]
	if err := fn(&v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.visits[id] = v
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// formVisit reads appointment_id and checks the visit exists.
func (s *Server) formVisit(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(r.FormValue("appointment_id")))
	if err != nil {
		http.Error(w, "invalid appointment_id", http.StatusBadRequest)
		return 0, false
	}
	s.mu.RLock()
	_, ok := s.visits[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) serveAudio(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data, ok := s.audio[chi.URLParam(r, "name")]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/webm")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "err", err)
	}
}
