package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCaptureArgs returns an ffmpeg invocation that reads from the given
// input format and device and writes Opus-in-WebM to stdout.
func DefaultCaptureArgs(format, device string) []string {
	if format == "" {
		format = "pulse"
	}
	if device == "" {
		device = "default"
	}
	return []string{
		"ffmpeg", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format, "-i", device,
		"-ac", "1", "-c:a", "libopus",
		"-f", "webm", "pipe:1",
	}
}

// CommandMicrophone captures audio by running an external recorder process
// that writes the encoded stream to stdout.
type CommandMicrophone struct {
	Args []string
	// StartupGrace is how long Open waits for the recorder to fail fast
	// before treating the device as acquired.
	StartupGrace time.Duration
	// StopTimeout bounds how long Close waits after interrupting the process.
	StopTimeout time.Duration
}

// Open starts the recorder process.
func (m *CommandMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(m.Args) == 0 {
		return nil, fmt.Errorf("no capture command configured: %w", ErrDeviceUnavailable)
	}
	bin, err := exec.LookPath(m.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Args[0], ErrDeviceUnavailable)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}

	cmd := exec.Command(bin, m.Args[1:]...)
	stderr := &syncBuffer{}
	cmd.Stdout = pw
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", m.Args[0], ErrDeviceUnavailable)
	}
	// The child owns the write end now.
	pw.Close()

	s := &commandStream{
		cmd:     cmd,
		pipe:    pr,
		exited:  make(chan struct{}),
		timeout: m.StopTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = 3 * time.Second
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	grace := m.StartupGrace
	if grace <= 0 {
		grace = 300 * time.Millisecond
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-s.exited:
		pr.Close()
		return nil, classifyCaptureFailure(stderr.String(), s.waitErr)
	case <-ctx.Done():
		_ = s.Close()
		pr.Close()
		return nil, ctx.Err()
	case <-timer.C:
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.exited:
		}
	}()
	return s, nil
}

// classifyCaptureFailure maps recorder stderr to the capture error taxonomy.
func classifyCaptureFailure(stderr string, waitErr error) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "operation not permitted") {
		return fmt.Errorf("%s: %w", msg, ErrPermissionDenied)
	}
	if msg == "" && waitErr != nil {
		msg = waitErr.Error()
	}
	return fmt.Errorf("recorder exited: %s: %w", msg, ErrDeviceUnavailable)
}

// commandStream reads the recorder's stdout. Close interrupts the recorder so
// it can finish the container, then kills it if it lingers. The read end is
// released once the reader sees EOF.
type commandStream struct {
	cmd     *exec.Cmd
	pipe    *os.File
	exited  chan struct{}
	waitErr error
	timeout time.Duration

	closeOnce sync.Once
	eofOnce   sync.Once
}

func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.pipe.Read(p)
	if err != nil {
		s.eofOnce.Do(func() { s.pipe.Close() })
		if errors.Is(err, os.ErrClosed) {
			err = io.EOF
		}
	}
	return n, err
}

func (s *commandStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		select {
		case <-s.exited:
			return
		default:
		}
		if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			err = s.cmd.Process.Kill()
			<-s.exited
			return
		}
		select {
		case <-s.exited:
		case <-time.After(s.timeout):
			err = s.cmd.Process.Kill()
			<-s.exited
		}
	})
	return err
}

// syncBuffer is a bytes.Buffer safe for the exec copier goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
