package summary

import (
	"errors"
	"fmt"
	"strings"
)

// NewBulletText is the placeholder label given to an appended bullet.
const NewBulletText = "New bullet point"

// ErrIndexOutOfRange is returned by outline operations given a bad index.
var ErrIndexOutOfRange = errors.New("outline index out of range")

// DefaultOutline returns a fresh copy of the structured-summary template.
func DefaultOutline() []string {
	return []string{
		"Purpose of visit",
		"Preexisting conditions",
		"Previous visual acuity",
		"New visual acuity",
		"Diagnosis",
		"Recommended medication",
		"Follow-up appointment",
		"Additional notes",
	}
}

// Move returns a copy of items with the element at from removed and
// reinserted at to. Intermediate elements shift by one; Move(i, i) returns an
// unchanged copy.
func Move(items []string, from, to int) ([]string, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, fmt.Errorf("move %d -> %d in outline of %d: %w", from, to, len(items), ErrIndexOutOfRange)
	}
	out := make([]string, len(items))
	copy(out, items)
	if from == to {
		return out, nil
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out, nil
}

// Editor is the mutable outline for a structured visit. It tracks which item,
// if any, is being edited. Create one with NewEditor.
type Editor struct {
	items   []string
	editing int
}

// NewEditor returns an editor seeded with a copy of items.
func NewEditor(items []string) *Editor {
	e := &Editor{editing: -1}
	e.Reset(items)
	return e
}

// Reset replaces the outline with a copy of items and leaves edit mode.
func (e *Editor) Reset(items []string) {
	e.items = append([]string(nil), items...)
	e.editing = -1
}

// Items returns a copy of the outline.
func (e *Editor) Items() []string {
	return append([]string{}, e.items...)
}

// Len returns the number of bullets.
func (e *Editor) Len() int { return len(e.items) }

// Editing returns the index in edit mode, or -1.
func (e *Editor) Editing() int { return e.editing }

// Append adds text at the end and enters edit mode on it. Blank text is
// replaced with NewBulletText.
func (e *Editor) Append(text string) int {
	if strings.TrimSpace(text) == "" {
		text = NewBulletText
	}
	e.items = append(e.items, text)
	e.editing = len(e.items) - 1
	return e.editing
}

// BeginEdit enters edit mode on index i.
func (e *Editor) BeginEdit(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.editing = i
	return nil
}

// EndEdit leaves edit mode.
func (e *Editor) EndEdit() { e.editing = -1 }

// Update replaces the bullet at i. Blank text is ignored and the prior value
// kept; the returned bool reports whether the bullet changed.
func (e *Editor) Update(i int, text string) (bool, error) {
	if err := e.check(i); err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	changed := e.items[i] != text
	e.items[i] = text
	return changed, nil
}

// Remove deletes the bullet at i.
func (e *Editor) Remove(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.items = append(e.items[:i], e.items[i+1:]...)
	switch {
	case e.editing == i:
		e.editing = -1
	case e.editing > i:
		e.editing--
	}
	return nil
}

// Move relocates the bullet at from to index to.
func (e *Editor) Move(from, to int) error {
	moved, err := Move(e.items, from, to)
	if err != nil {
		return err
	}
	e.items = moved
	switch {
	case e.editing < 0:
	case e.editing == from:
		e.editing = to
	case from < e.editing && e.editing <= to:
		e.editing--
	case to <= e.editing && e.editing < from:
		e.editing++
	}
	return nil
}

func (e *Editor) check(i int) error {
	if i < 0 || i >= len(e.items) {
		return fmt.Errorf("bullet %d of %d: %w", i, len(e.items), ErrIndexOutOfRange)
	}
	return nil
}
