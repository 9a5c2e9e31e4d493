// Package playback controls audio playback of a visit recording with seek and
// rate control.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fakeyudi/oculist/internal/visit"
)

const (
	MinRate     = 0.25
	MaxRate     = 2.0
	DefaultRate = 1.0
)

var (
	// ErrRateOutOfRange is returned by SetRate outside [MinRate, MaxRate].
	ErrRateOutOfRange = errors.New("playback rate out of range")
	// ErrNoSource is returned by transport controls before anything is loaded.
	ErrNoSource = errors.New("no audio loaded")
)

// Source is a playable reference: a local file path or a backend URL.
type Source string

// Decoded describes a source once it has been inspected. A Duration of zero
// means the length is unknown.
type Decoded struct {
	Duration float64
}

// AudioDecoder inspects a source before it is played.
type AudioDecoder interface {
	Decode(ctx context.Context, src Source) (Decoded, error)
}

// AudioPlayer plays one decoded source. Positions are in seconds.
type AudioPlayer interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	Position() float64
	Close() error
}

// PlayerFactory creates a player for a decoded source.
type PlayerFactory interface {
	NewPlayer(src Source, d Decoded) (AudioPlayer, error)
}

// Controller owns at most one live player.
type Controller struct {
	decoder AudioDecoder
	factory PlayerFactory

	mu       sync.Mutex
	player   AudioPlayer
	source   Source
	duration float64
	rate     float64
	playing  bool
}

// NewController returns an empty controller.
func NewController(decoder AudioDecoder, factory PlayerFactory) *Controller {
	return &Controller{decoder: decoder, factory: factory, rate: DefaultRate}
}

// Load replaces the current source. The previous player is closed before the
// new source is decoded, so two players never run at once.
func (c *Controller) Load(ctx context.Context, src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown()

	d, err := c.decoder.Decode(ctx, src)
	if err != nil {
		return fmt.Errorf("load %s: %w", src, err)
	}
	p, err := c.factory.NewPlayer(src, d)
	if err != nil {
		return fmt.Errorf("load %s: %w", src, err)
	}

	c.player = p
	c.source = src
	c.duration = d.Duration
	c.rate = DefaultRate
	slog.Debug("audio loaded", "source", src, "duration", d.Duration)
	return nil
}

// Play starts or resumes playback.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.play()
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pause()
}

// Toggle flips between playing and paused.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return c.pause()
	}
	return c.play()
}

// SeekToFraction moves to f of the duration, with f clamped to [0, 1].
func (c *Controller) SeekToFraction(f float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return ErrNoSource
	}
	return c.player.Seek(clamp(f, 0, 1) * c.duration)
}

// SeekToSeconds moves to the given offset. It does nothing while the duration
// is unknown.
func (c *Controller) SeekToSeconds(s float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return ErrNoSource
	}
	f, ok := FractionFor(s, c.duration)
	if !ok {
		return nil
	}
	return c.player.Seek(f * c.duration)
}

// SetRate changes the playback speed.
func (c *Controller) SetRate(r float64) error {
	if r < MinRate || r > MaxRate {
		return fmt.Errorf("%w: %.2f not in [%.2f, %.2f]", ErrRateOutOfRange, r, MinRate, MaxRate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player != nil {
		if err := c.player.SetRate(r); err != nil {
			return err
		}
	}
	c.rate = r
	return nil
}

// Position is the current offset in seconds, or zero with nothing loaded.
func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return 0
	}
	return c.player.Position()
}

func (c *Controller) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Source returns the loaded source, or "" when empty.
func (c *Controller) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Close releases the player.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teardown()
}

func (c *Controller) play() error {
	if c.player == nil {
		return ErrNoSource
	}
	if err := c.player.Play(); err != nil {
		return err
	}
	c.playing = true
	return nil
}

func (c *Controller) pause() error {
	if c.player == nil {
		return ErrNoSource
	}
	if err := c.player.Pause(); err != nil {
		return err
	}
	c.playing = false
	return nil
}

func (c *Controller) teardown() error {
	if c.player == nil {
		return nil
	}
	err := c.player.Close()
	if err != nil {
		slog.Warn("closing audio player", "source", c.source, "err", err)
	}
	c.player = nil
	c.source = ""
	c.duration = 0
	c.playing = false
	return err
}

// FractionFor maps an offset in seconds to a fraction of duration, clamped to
// [0, 1]. It reports false when the duration is not positive.
func FractionFor(seconds, duration float64) (float64, bool) {
	if !(duration > 0) {
		return 0, false
	}
	return clamp(seconds/duration, 0, 1), true
}

// SegmentAt returns the index of the last segment starting at or before
// seconds, or -1 when seconds precedes every segment.
func SegmentAt(segments []visit.Segment, seconds float64) int {
	i := sort.Search(len(segments), func(i int) bool { return segments[i].Start > seconds })
	return i - 1
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v != v:
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
