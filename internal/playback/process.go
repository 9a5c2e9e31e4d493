package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrDecodeFailed is returned when a source cannot be inspected.
var ErrDecodeFailed = errors.New("audio decode failed")

// ProbeDecoder reads the duration of a source with ffprobe. Recordings
// streamed straight from a capture device often carry no duration header, in
// which case the last packet timestamp is used instead.
type ProbeDecoder struct {
	// Command is the probe binary and any leading arguments. Defaults to ffprobe.
	Command []string
}

func (d ProbeDecoder) command() []string {
	if len(d.Command) == 0 {
		return []string{"ffprobe"}
	}
	return d.Command
}

// Decode implements AudioDecoder.
func (d ProbeDecoder) Decode(ctx context.Context, src Source) (Decoded, error) {
	out, err := d.run(ctx, "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", string(src))
	if err != nil {
		return Decoded{}, err
	}
	if dur, ok := parseSeconds(out); ok {
		return Decoded{Duration: dur}, nil
	}

	out, err = d.run(ctx, "-v", "error", "-select_streams", "a:0",
		"-show_entries", "packet=pts_time", "-of", "csv=p=0", string(src))
	if err != nil {
		return Decoded{}, err
	}
	dur, _ := parseSeconds(out)
	return Decoded{Duration: dur}, nil
}

func (d ProbeDecoder) run(ctx context.Context, args ...string) (string, error) {
	argv := append(append([]string{}, d.command()...), args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %v: %s", ErrDecodeFailed, err, msg)
		}
		return "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return string(out), nil
}

// parseSeconds returns the last numeric line of probe output.
func parseSeconds(out string) (float64, bool) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		field := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(lines[i]), ","))
		v, err := strconv.ParseFloat(field, 64)
		if err == nil && v > 0 && v == v && v < 1e9 {
			return v, true
		}
	}
	return 0, false
}

// ProcessFactory creates ProcessPlayers.
type ProcessFactory struct {
	// Command is the player binary and any leading arguments. Defaults to ffplay.
	Command []string
}

// NewPlayer implements PlayerFactory.
func (f ProcessFactory) NewPlayer(src Source, d Decoded) (AudioPlayer, error) {
	command := f.Command
	if len(command) == 0 {
		command = []string{"ffplay"}
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("audio player %q: %w", command[0], err)
	}
	return &ProcessPlayer{
		command:  command,
		source:   src,
		duration: d.Duration,
		rate:     DefaultRate,
		now:      time.Now,
	}, nil
}

// ProcessPlayer plays a source with an external player process. The process
// is respawned at the tracked offset on every play, seek and rate change, and
// the position is advanced from a clock while it runs.
type ProcessPlayer struct {
	command  []string
	source   Source
	duration float64
	now      func() time.Time

	mu        sync.Mutex
	cmd       *exec.Cmd
	offset    float64
	startedAt time.Time
	rate      float64
}

// Play implements AudioPlayer.
func (p *ProcessPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil
	}
	if p.duration > 0 && p.offset >= p.duration {
		p.offset = 0
	}
	return p.spawn()
}

// Pause implements AudioPlayer.
func (p *ProcessPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.position()
	p.stop()
	return nil
}

// Seek implements AudioPlayer.
func (p *ProcessPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = seconds
	if p.cmd == nil {
		return nil
	}
	p.stop()
	return p.spawn()
}

// SetRate implements AudioPlayer.
func (p *ProcessPlayer) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.position()
	p.rate = rate
	if p.cmd == nil {
		return nil
	}
	p.stop()
	return p.spawn()
}

// Position implements AudioPlayer.
func (p *ProcessPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

// Close implements AudioPlayer.
func (p *ProcessPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}

func (p *ProcessPlayer) position() float64 {
	pos := p.offset
	if p.cmd != nil {
		pos += p.now().Sub(p.startedAt).Seconds() * p.rate
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *ProcessPlayer) spawn() error {
	args := append(append([]string{}, p.command[1:]...),
		"-nodisp", "-autoexit", "-loglevel", "error",
		"-ss", strconv.FormatFloat(p.offset, 'f', 3, 64),
		"-af", atempoFilter(p.rate),
		string(p.source))
	cmd := exec.Command(p.command[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start audio player: %w", err)
	}
	p.cmd = cmd
	p.startedAt = p.now()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cmd != cmd {
			return
		}
		// The player reached the end or died on its own.
		p.offset = p.position()
		p.cmd = nil
		if err != nil {
			slog.Debug("audio player exited", "source", p.source, "err", err)
		}
	}()
	return nil
}

func (p *ProcessPlayer) stop() {
	if p.cmd == nil {
		return
	}
	cmd := p.cmd
	p.cmd = nil
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// atempoFilter builds an ffmpeg atempo chain for rate. A single atempo stage
// accepts [0.5, 2.0], so slower rates are chained.
func atempoFilter(rate float64) string {
	var stages []string
	for rate < 0.5 {
		stages = append(stages, "atempo=0.5")
		rate /= 0.5
	}
	stages = append(stages, "atempo="+strconv.FormatFloat(rate, 'f', -1, 64))
	return strings.Join(stages, ",")
}
