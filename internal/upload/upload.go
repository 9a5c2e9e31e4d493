// Package upload packages finished recordings and submits them to the
// backend, one at a time per visit.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fakeyudi/oculist/internal/backend"
	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/visit"
)

// ErrSubmissionInFlight is returned when a visit already has a pending upload.
var ErrSubmissionInFlight = errors.New("a submission for this visit is already in flight")

// ErrEmptyArtifact is returned when asked to submit a recording with no audio.
var ErrEmptyArtifact = errors.New("recording is empty")

// Uploader sends one recording to the backend.
type Uploader interface {
	Upload(ctx context.Context, req backend.UploadRequest) (backend.UploadResult, error)
}

// Result is the outcome of one submission. Seq increases with every Submit
// call so callers can tell a late response from the latest one.
type Result struct {
	Seq        uint64
	VisitID    int
	Transcript []visit.Segment
	Summary    string
}

// Coordinator serializes submissions per visit.
type Coordinator struct {
	uploader Uploader

	mu       sync.Mutex
	seq      uint64
	inFlight map[int]uint64
}

// NewCoordinator returns a Coordinator that submits through u.
func NewCoordinator(u Uploader) *Coordinator {
	return &Coordinator{uploader: u, inFlight: make(map[int]uint64)}
}

// Submit uploads art for the visit. The outline is only sent for structured
// visit types. There is a single attempt; failures are returned as is and
// match backend.ErrUploadFailed.
func (c *Coordinator) Submit(ctx context.Context, art capture.Artifact, visitID int, visitType visit.Type, outline []string) (Result, error) {
	if len(art.Data) == 0 {
		return Result{VisitID: visitID}, ErrEmptyArtifact
	}

	seq, err := c.acquire(visitID)
	if err != nil {
		return Result{VisitID: visitID}, err
	}
	defer c.release(visitID, seq)

	var bullets []string
	if visitType.Structured() {
		bullets = append([]string{}, outline...)
	}

	log := slog.With("visit_id", visitID, "seq", seq)
	log.Info("submitting recording", "bytes", len(art.Data), "type", visitType)

	res, err := c.uploader.Upload(ctx, backend.UploadRequest{
		VisitID:   visitID,
		VisitType: visitType,
		Bullets:   bullets,
		Audio:     art.Data,
		MIMEType:  art.MIMEType,
	})
	if err != nil {
		log.Warn("submission failed", "err", err)
		return Result{Seq: seq, VisitID: visitID}, fmt.Errorf("submit recording for visit %d: %w", visitID, err)
	}

	log.Info("submission complete", "segments", len(res.Transcript))
	return Result{
		Seq:        seq,
		VisitID:    visitID,
		Transcript: res.Transcript,
		Summary:    res.Summary,
	}, nil
}

// InFlight reports whether the visit has a pending submission.
func (c *Coordinator) InFlight(visitID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[visitID]
	return ok
}

func (c *Coordinator) acquire(visitID int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[visitID]; busy {
		return 0, ErrSubmissionInFlight
	}
	c.seq++
	c.inFlight[visitID] = c.seq
	return c.seq, nil
}

func (c *Coordinator) release(visitID int, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[visitID] == seq {
		delete(c.inFlight, visitID)
	}
}
