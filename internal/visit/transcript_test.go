package visit

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"
)

// Feature: oculist, Property 1: transcript timestamp formatting
func TestFormatTimestampFloorSplit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Float64Range(0, 6000).Draw(t, "start")

		got := FormatTimestamp(start)
		want := fmt.Sprintf("%02d:%02d", int(math.Floor(start/60)), int(math.Floor(math.Mod(start, 60))))
		if got != want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", start, got, want)
		}
		if len(got) < 5 {
			t.Fatalf("FormatTimestamp(%v) = %q, want at least mm:ss width", start, got)
		}
	})
}

func TestFormatTimestampExamples(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{0.99, "00:00"},
		{59.999, "00:59"},
		{60, "01:00"},
		{125.4, "02:05"},
		{-3, "00:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
		{math.Inf(-1), "00:00"},
		{1e300, "35791394:07"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.in); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCapitalizeFirst(t *testing.T) {
	cases := map[string]string{
		"hello":  "Hello",
		"Hello":  "Hello",
		"":       "",
		"élan":   "Élan",
		"1 drop": "1 drop",
	}
	for in, want := range cases {
		if got := CapitalizeFirst(in); got != want {
			t.Errorf("CapitalizeFirst(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseMarked(t *testing.T) {
	text := "[00:00] Hello doctor. [00:04] My eyes hurt.\n[01:02:03] Late remark."
	got := ParseMarked(text)
	want := []Segment{
		{Start: 0, Text: "Hello doctor."},
		{Start: 4, Text: "My eyes hurt."},
		{Start: 3723, Text: "Late remark."},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseMarkedWithoutMarkers(t *testing.T) {
	got := ParseMarked("  just text  ")
	if len(got) != 1 || got[0].Start != 0 || got[0].Text != "just text" {
		t.Errorf("got %+v", got)
	}
	if ParseMarked("   ") != nil {
		t.Error("expected nil for blank transcript")
	}
}

func TestDecodeTranscript(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []Segment
		wantErr bool
	}{
		{"null", `null`, nil, false},
		{"empty", ``, nil, false},
		{"array", `[{"start":0,"text":"hello"}]`, []Segment{{0, "hello"}}, false},
		{"array sorted", `[{"start":5,"text":"b"},{"start":1,"text":"a"}]`, []Segment{{1, "a"}, {5, "b"}}, false},
		{"string", `"[00:03] hi [00:07] there"`, []Segment{{3, "hi"}, {7, "there"}}, false},
		{"number", `42`, nil, true},
		{"bad array", `[{"start":"x"}]`, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeTranscript(json.RawMessage(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("segment[%d] = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// Feature: oculist, Property 2: decoded segments are non-decreasing in start
func TestDecodeTranscriptOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		segs := make([]Segment, n)
		for i := range segs {
			segs[i] = Segment{
				Start: rapid.Float64Range(0, 3600).Draw(t, "start"),
				Text:  rapid.StringMatching(`[a-z ]{1,20}`).Draw(t, "text"),
			}
		}
		raw, err := json.Marshal(segs)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := DecodeTranscript(raw)
		if err != nil {
			t.Fatalf("DecodeTranscript: %v", err)
		}
		if len(got) != n {
			t.Fatalf("len = %d, want %d", len(got), n)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Start < got[i-1].Start {
				t.Fatalf("segments out of order at %d: %v < %v", i, got[i].Start, got[i-1].Start)
			}
		}
	})
}
