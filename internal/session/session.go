// Package session holds the state of the visit currently open in the client:
// what was loaded from the backend, what is being recorded or uploaded, and
// which submission's response is still wanted.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/oculist/internal/backend"
	"github.com/fakeyudi/oculist/internal/playback"
	"github.com/fakeyudi/oculist/internal/summary"
	"github.com/fakeyudi/oculist/internal/visit"
)

// ErrInvalidTransition is returned when a phase change is not allowed from
// the current phase.
var ErrInvalidTransition = errors.New("invalid session transition")

// Lifecycle tracks loading of the visit itself.
type Lifecycle int

const (
	LifecycleUninitialized Lifecycle = iota
	LifecycleLoadingVisit
	LifecycleReady
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleUninitialized:
		return "uninitialized"
	case LifecycleLoadingVisit:
		return "loading-visit"
	case LifecycleReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Phase tracks the recording pipeline of a loaded visit.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseUploading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseUploading:
		return "uploading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is the subset of the backend client the session loads from.
type Backend interface {
	GetVisit(ctx context.Context, id int) (visit.Visit, error)
	FetchTranscription(ctx context.Context, visitID int) (backend.Transcription, error)
}

// Snapshot is a copy of the session taken for rendering.
type Snapshot struct {
	VisitID    int
	Visit      visit.Visit
	Lifecycle  Lifecycle
	Phase      Phase
	Transcript []visit.Segment
	Summary    string
	Outline    []string
	Audio      playback.Source
	Err        error
}

// HasResult reports whether a transcript or summary is present.
func (s Snapshot) HasResult() bool {
	return len(s.Transcript) > 0 || s.Summary != ""
}

// State is the session of one visit view. All methods are safe for
// concurrent use; every transition happens under one lock.
type State struct {
	backend  Backend
	drafts   OutlineStore
	template []string

	mu         sync.Mutex
	visitID    int
	visit      visit.Visit
	lifecycle  Lifecycle
	phase      Phase
	transcript []visit.Segment
	summary    string
	outline    []string
	submitted  []string
	audio      playback.Source
	err        error
	openSeq    uint64
	uploadSeq  uint64
}

// New returns an uninitialized session. drafts may be nil. An empty template
// falls back to summary.DefaultOutline.
func New(b Backend, drafts OutlineStore, template []string) *State {
	if len(template) == 0 {
		template = summary.DefaultOutline()
	}
	return &State{
		backend:  b,
		drafts:   drafts,
		template: append([]string{}, template...),
		outline:  append([]string{}, template...),
	}
}

// Open loads visit id. Switching to a different id clears everything loaded
// for the previous one; reopening the same id keeps it until the fetches
// return. The visit record and prior transcription are fetched concurrently.
// Only a failed visit fetch is an error.
func (s *State) Open(ctx context.Context, id int) error {
	s.mu.Lock()
	if id != s.visitID || s.lifecycle == LifecycleUninitialized {
		s.resetLocked(id)
	}
	s.lifecycle = LifecycleLoadingVisit
	s.openSeq++
	seq := s.openSeq
	s.mu.Unlock()

	log := slog.With("visit_id", id)

	var (
		v        visit.Visit
		tr       backend.Transcription
		hasPrior bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v, err = s.backend.GetVisit(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		tr, err = s.backend.FetchTranscription(gctx, id)
		if err != nil {
			log.Debug("no prior transcription", "err", err)
			return nil
		}
		hasPrior = true
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.openSeq || id != s.visitID {
		return nil
	}
	if err != nil {
		s.lifecycle = LifecycleUninitialized
		s.phase = PhaseError
		s.err = err
		log.Warn("loading visit failed", "err", err)
		return fmt.Errorf("open visit %d: %w", id, err)
	}

	s.visit = v
	s.lifecycle = LifecycleReady
	s.err = nil

	// A recording or upload started meanwhile owns the result fields.
	if s.phase == PhaseRecording || s.phase == PhaseUploading {
		return nil
	}

	s.outline = s.initialOutline(id, tr.Bullets)
	if hasPrior {
		s.transcript = tr.Transcript
		s.summary = tr.Summary
		s.audio = playback.Source(tr.AudioURL)
	}
	if len(s.transcript) > 0 || s.summary != "" {
		s.phase = PhaseReady
	} else {
		s.phase = PhaseIdle
	}
	log.Info("visit opened", "type", v.Type, "segments", len(s.transcript))
	return nil
}

// initialOutline prefers an unsent local draft, then the backend's stored
// outline, then the template.
func (s *State) initialOutline(id int, stored []string) []string {
	if s.drafts != nil {
		draft, err := s.drafts.Load(id)
		switch {
		case err == nil && len(draft) > 0:
			return draft
		case err != nil && !errors.Is(err, ErrNoDraft):
			slog.Warn("reading outline draft", "visit_id", id, "err", err)
		}
	}
	if len(stored) > 0 {
		return append([]string{}, stored...)
	}
	return append([]string{}, s.template...)
}

func (s *State) resetLocked(id int) {
	s.visitID = id
	s.visit = visit.Visit{}
	s.lifecycle = LifecycleUninitialized
	s.phase = PhaseIdle
	s.transcript = nil
	s.summary = ""
	s.outline = append([]string{}, s.template...)
	s.submitted = nil
	s.audio = ""
	s.err = nil
}

// BeginRecording moves a loaded visit into the recording phase.
func (s *State) BeginRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle != LifecycleReady {
		return fmt.Errorf("%w: visit not loaded", ErrInvalidTransition)
	}
	switch s.phase {
	case PhaseIdle, PhaseReady, PhaseError:
	default:
		return fmt.Errorf("%w: cannot record while %s", ErrInvalidTransition, s.phase)
	}
	s.phase = PhaseRecording
	s.err = nil
	return nil
}

// CancelRecording abandons a recording without submitting it.
func (s *State) CancelRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRecording {
		return fmt.Errorf("%w: not recording", ErrInvalidTransition)
	}
	s.phase = s.restingPhase()
	return nil
}

// BeginUpload moves a finished recording into the uploading phase and returns
// the sequence number its result must carry. The current outline is the one
// the submission sends.
func (s *State) BeginUpload() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRecording {
		return 0, fmt.Errorf("%w: cannot upload while %s", ErrInvalidTransition, s.phase)
	}
	s.submitted = append([]string{}, s.outline...)
	s.uploadSeq++
	s.phase = PhaseUploading
	return s.uploadSeq, nil
}

// ApplyResult stores the transcript and summary of submission seq together.
// It reports false and changes nothing when seq is not the latest submission.
func (s *State) ApplyResult(seq uint64, transcript []visit.Segment, summaryText string, audio playback.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.uploadSeq || s.phase != PhaseUploading {
		slog.Debug("discarding stale upload result", "visit_id", s.visitID, "seq", seq, "latest", s.uploadSeq)
		return false
	}
	s.transcript = transcript
	s.summary = summaryText
	if audio != "" {
		s.audio = audio
	}
	s.phase = PhaseReady
	s.err = nil

	// Edits made while the upload was in flight stay as a draft.
	if s.drafts != nil && slices.Equal(s.outline, s.submitted) {
		if err := s.drafts.Delete(s.visitID); err != nil {
			slog.Warn("clearing outline draft", "visit_id", s.visitID, "err", err)
		}
	}
	return true
}

// FailUpload records that submission seq failed. Prior transcript and summary
// are kept. It reports false for a stale seq.
func (s *State) FailUpload(seq uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.uploadSeq || s.phase != PhaseUploading {
		return false
	}
	s.phase = PhaseError
	s.err = err
	return true
}

// SetOutline replaces the outline sent with the next submission and stores
// it as a draft.
func (s *State) SetOutline(outline []string) {
	s.mu.Lock()
	s.outline = append([]string{}, outline...)
	id := s.visitID
	s.mu.Unlock()

	if s.drafts == nil {
		return
	}
	if err := s.drafts.Save(id, outline); err != nil {
		slog.Warn("saving outline draft", "visit_id", id, "err", err)
	}
}

// SetVisit replaces the loaded visit record after a local edit.
func (s *State) SetVisit(v visit.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == s.visitID {
		s.visit = v
	}
}

// Snapshot returns a copy of the session.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		VisitID:    s.visitID,
		Visit:      s.visit,
		Lifecycle:  s.lifecycle,
		Phase:      s.phase,
		Transcript: append([]visit.Segment(nil), s.transcript...),
		Summary:    s.summary,
		Outline:    append([]string(nil), s.outline...),
		Audio:      s.audio,
		Err:        s.err,
	}
}

func (s *State) restingPhase() Phase {
	if len(s.transcript) > 0 || s.summary != "" {
		return PhaseReady
	}
	return PhaseIdle
}
