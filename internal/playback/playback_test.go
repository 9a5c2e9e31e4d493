package playback

import (
	"context"
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/oculist/internal/visit"
)

type fakeDecoder struct {
	duration float64
	err      error
	calls    []Source
	// openAtDecode records how many players were still open when Decode ran.
	openAtDecode []int
	factory      *fakeFactory
}

func (d *fakeDecoder) Decode(ctx context.Context, src Source) (Decoded, error) {
	d.calls = append(d.calls, src)
	if d.factory != nil {
		d.openAtDecode = append(d.openAtDecode, d.factory.open())
	}
	return Decoded{Duration: d.duration}, d.err
}

type fakePlayer struct {
	playing bool
	closed  bool
	seeks   []float64
	rate    float64
	pos     float64
}

func (p *fakePlayer) Play() error {
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause() error {
	p.playing = false
	return nil
}

func (p *fakePlayer) Seek(s float64) error {
	p.seeks = append(p.seeks, s)
	p.pos = s
	return nil
}

func (p *fakePlayer) SetRate(r float64) error {
	p.rate = r
	return nil
}

func (p *fakePlayer) Position() float64 { return p.pos }

func (p *fakePlayer) Close() error {
	p.closed = true
	return nil
}

type fakeFactory struct {
	players []*fakePlayer
}

func (f *fakeFactory) NewPlayer(src Source, d Decoded) (AudioPlayer, error) {
	p := &fakePlayer{rate: DefaultRate}
	f.players = append(f.players, p)
	return p, nil
}

func (f *fakeFactory) open() int {
	n := 0
	for _, p := range f.players {
		if !p.closed {
			n++
		}
	}
	return n
}

func newTestController(duration float64) (*Controller, *fakeFactory) {
	f := &fakeFactory{}
	d := &fakeDecoder{duration: duration, factory: f}
	return NewController(d, f), f
}

func TestController_LoadTearsDownPrevious(t *testing.T) {
	c, f := newTestController(60)
	ctx := context.Background()

	if err := c.Load(ctx, "a.webm"); err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := c.Load(ctx, "b.webm"); err != nil {
		t.Fatalf("Load b: %v", err)
	}

	if !f.players[0].closed {
		t.Error("first player was not closed")
	}
	if f.open() != 1 {
		t.Errorf("open players = %d, want 1", f.open())
	}
	d := c.decoder.(*fakeDecoder)
	if d.openAtDecode[1] != 0 {
		t.Errorf("previous player still open while decoding next source")
	}
	if c.Playing() {
		t.Error("controller should be paused after a new load")
	}
	if c.Source() != "b.webm" {
		t.Errorf("Source = %q, want b.webm", c.Source())
	}
}

func TestController_LoadDecodeError(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(&fakeDecoder{err: ErrDecodeFailed}, f)

	err := c.Load(context.Background(), "bad.webm")
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("err = %v, want ErrDecodeFailed", err)
	}
	if len(f.players) != 0 {
		t.Error("player created for an undecodable source")
	}
	if err := c.Play(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Play err = %v, want ErrNoSource", err)
	}
}

func TestController_Toggle(t *testing.T) {
	c, f := newTestController(10)
	_ = c.Load(context.Background(), "a.webm")

	_ = c.Toggle()
	if !c.Playing() || !f.players[0].playing {
		t.Fatal("Toggle from paused should play")
	}
	_ = c.Toggle()
	if c.Playing() || f.players[0].playing {
		t.Fatal("Toggle from playing should pause")
	}
}

func TestController_SetRate(t *testing.T) {
	c, f := newTestController(10)
	_ = c.Load(context.Background(), "a.webm")

	for _, r := range []float64{0.25, 1, 1.5, 2} {
		if err := c.SetRate(r); err != nil {
			t.Errorf("SetRate(%v): %v", r, err)
		}
	}
	if f.players[0].rate != 2 || c.Rate() != 2 {
		t.Errorf("rate = %v/%v, want 2", f.players[0].rate, c.Rate())
	}
	for _, r := range []float64{0, 0.2, 2.01, -1} {
		if err := c.SetRate(r); !errors.Is(err, ErrRateOutOfRange) {
			t.Errorf("SetRate(%v) err = %v, want ErrRateOutOfRange", r, err)
		}
	}
	if c.Rate() != 2 {
		t.Errorf("rejected rate changed Rate() to %v", c.Rate())
	}
}

func TestController_SeekToFractionClamps(t *testing.T) {
	c, f := newTestController(40)
	_ = c.Load(context.Background(), "a.webm")

	_ = c.SeekToFraction(0.5)
	_ = c.SeekToFraction(-3)
	_ = c.SeekToFraction(7)
	want := []float64{20, 0, 40}
	for i, w := range want {
		if f.players[0].seeks[i] != w {
			t.Errorf("seek %d = %v, want %v", i, f.players[0].seeks[i], w)
		}
	}
}

func TestController_SeekToSecondsUnknownDuration(t *testing.T) {
	c, f := newTestController(0)
	_ = c.Load(context.Background(), "a.webm")

	if err := c.SeekToSeconds(12); err != nil {
		t.Fatalf("SeekToSeconds: %v", err)
	}
	if len(f.players[0].seeks) != 0 {
		t.Errorf("seek issued with unknown duration: %v", f.players[0].seeks)
	}
}

// Feature: oculist, Property 7: seeking to s lands on min(1, s/D) of the duration
func TestSeekToSecondsFraction(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		duration := rapid.Float64Range(0.1, 7200).Draw(t, "duration")
		seconds := rapid.Float64Range(-100, 10000).Draw(t, "seconds")

		c, f := newTestController(duration)
		if err := c.Load(context.Background(), "a.webm"); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := c.SeekToSeconds(seconds); err != nil {
			t.Fatalf("SeekToSeconds: %v", err)
		}

		want := math.Max(0, math.Min(1, seconds/duration)) * duration
		got := f.players[0].seeks[0]
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("seek = %v, want %v", got, want)
		}
		if got < 0 || got > duration {
			t.Fatalf("seek %v outside [0, %v]", got, duration)
		}
	})
}

func TestFractionFor(t *testing.T) {
	tests := []struct {
		seconds, duration float64
		want              float64
		ok                bool
	}{
		{seconds: 30, duration: 60, want: 0.5, ok: true},
		{seconds: 90, duration: 60, want: 1, ok: true},
		{seconds: -5, duration: 60, want: 0, ok: true},
		{seconds: 5, duration: 0, ok: false},
		{seconds: 5, duration: -1, ok: false},
		{seconds: 5, duration: math.NaN(), ok: false},
	}
	for _, tt := range tests {
		got, ok := FractionFor(tt.seconds, tt.duration)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FractionFor(%v, %v) = %v, %v; want %v, %v", tt.seconds, tt.duration, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSegmentAt(t *testing.T) {
	segs := []visit.Segment{{Start: 0, Text: "a"}, {Start: 5.2, Text: "b"}, {Start: 12, Text: "c"}}
	tests := []struct {
		seconds float64
		want    int
	}{
		{-1, -1},
		{0, 0},
		{5.1, 0},
		{5.2, 1},
		{11.9, 1},
		{500, 2},
	}
	for _, tt := range tests {
		if got := SegmentAt(segs, tt.seconds); got != tt.want {
			t.Errorf("SegmentAt(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
	if got := SegmentAt(nil, 3); got != -1 {
		t.Errorf("SegmentAt(nil) = %d, want -1", got)
	}
}
