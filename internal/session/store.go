package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNoDraft is returned by Load when no outline draft exists for a visit.
var ErrNoDraft = errors.New("no outline draft")

// OutlineStore persists edited summary outlines per visit until they are sent.
type OutlineStore interface {
	Save(visitID int, outline []string) error
	Load(visitID int) ([]string, error) // returns ErrNoDraft if none exists
	Delete(visitID int) error
}

// Draft is the on-disk form of an outline draft.
type Draft struct {
	VisitID   int       `json:"visit_id"`
	Outline   []string  `json:"outline"`
	UpdatedAt time.Time `json:"updated_at"`
}

// diskStore is the concrete OutlineStore that writes to the XDG data directory.
type diskStore struct {
	dir string // directory holding <visit id>.json files
}

// NewOutlineStore returns an OutlineStore backed by the XDG data directory.
// Path: $XDG_DATA_HOME/oculist/outlines or ~/.local/share/oculist/outlines
func NewOutlineStore() (OutlineStore, error) {
	base, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	dir := filepath.Join(base, "outlines")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

// DataDir returns the oculist-specific XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "oculist"), nil
}

// RecordingsDir is where finished recordings are kept for local playback.
func RecordingsDir() (string, error) {
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "recordings"), nil
}

func (d *diskStore) path(visitID int) string {
	return filepath.Join(d.dir, strconv.Itoa(visitID)+".json")
}

// Save writes the draft atomically via a temp file + os.Rename.
func (d *diskStore) Save(visitID int, outline []string) (err error) {
	data, err := json.Marshal(Draft{VisitID: visitID, Outline: outline, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to persist outline draft: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, "outline-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist outline draft: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist outline draft: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist outline draft: %w", err)
	}
	if err = os.Rename(tmpName, d.path(visitID)); err != nil {
		return fmt.Errorf("failed to persist outline draft: %w", err)
	}
	return nil
}

// Load reads the draft for a visit.
// Returns ErrNoDraft if the file does not exist.
func (d *diskStore) Load(visitID int) ([]string, error) {
	data, err := os.ReadFile(d.path(visitID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoDraft
		}
		return nil, fmt.Errorf("failed to read outline draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to parse outline draft: %w", err)
	}
	return draft.Outline, nil
}

// Delete removes the draft for a visit.
func (d *diskStore) Delete(visitID int) error {
	if err := os.Remove(d.path(visitID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete outline draft: %w", err)
	}
	return nil
}
