// Package capture records microphone audio for a visit and finalizes it into
// a single audio artifact.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MIMEType is the container tag used for captured audio and its playback.
const MIMEType = "audio/webm"

var (
	// ErrPermissionDenied is returned when the user or OS refuses microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable is returned when no audio input device can be opened.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
)

// MicrophoneSource opens an exclusive audio input stream. Closing the returned
// stream must release every underlying device handle.
type MicrophoneSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Artifact is the finalized audio payload of one recording session.
type Artifact struct {
	ID       string
	Data     []byte
	MIMEType string
}

// Recorder captures one recording session at a time from a MicrophoneSource.
type Recorder struct {
	source MicrophoneSource

	// OnComplete, when set, receives each finalized artifact.
	OnComplete func(Artifact)

	mu     sync.Mutex
	state  State
	stream io.ReadCloser
	chunks [][]byte
	done   chan struct{}
	cancel context.CancelFunc
}

// NewRecorder returns an idle recorder reading from source.
func NewRecorder(source MicrophoneSource) *Recorder {
	return &Recorder{source: source}
}

// State reports the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the microphone and begins buffering audio.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrAlreadyRecording
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := r.source.Open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("start recording: %w", err)
	}

	r.state = StateRecording
	r.stream = stream
	r.chunks = nil
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.read(stream, r.done)

	slog.Debug("recording started")
	return nil
}

// read drains the stream into chunks until it closes.
func (r *Recorder) read(stream io.Reader, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 32*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, context.Canceled) {
				slog.Debug("recording stream ended", "err", err)
			}
			return
		}
	}
}

// Stop releases the microphone and concatenates the buffered audio into an
// artifact. It is a silent no-op returning ok=false when not recording.
func (r *Recorder) Stop() (Artifact, bool) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return Artifact{}, false
	}
	r.state = StateFinalizing
	stream, done, cancel := r.stream, r.done, r.cancel
	r.mu.Unlock()

	closeErr := stream.Close()
	<-done
	cancel()

	r.mu.Lock()
	var buf bytes.Buffer
	for _, c := range r.chunks {
		buf.Write(c)
	}
	art := Artifact{
		ID:       uuid.New().String(),
		Data:     buf.Bytes(),
		MIMEType: MIMEType,
	}
	r.reset()
	onComplete := r.OnComplete
	r.mu.Unlock()

	if closeErr != nil {
		slog.Warn("releasing microphone", "err", closeErr)
	}
	slog.Debug("recording finalized", "artifact_id", art.ID, "bytes", len(art.Data))
	if onComplete != nil {
		onComplete(art)
	}
	return art, true
}

// Abort releases the microphone and discards the buffered audio.
func (r *Recorder) Abort() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateFinalizing
	stream, done, cancel := r.stream, r.done, r.cancel
	r.mu.Unlock()

	_ = stream.Close()
	<-done
	cancel()

	r.mu.Lock()
	r.reset()
	r.mu.Unlock()
	slog.Debug("recording aborted")
}

// reset returns to idle. Callers hold mu.
func (r *Recorder) reset() {
	r.state = StateIdle
	r.stream = nil
	r.chunks = nil
	r.done = nil
	r.cancel = nil
}
