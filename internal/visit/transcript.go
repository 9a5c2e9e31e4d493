package visit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment is one timestamped unit of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// Timestamp returns the segment start formatted as mm:ss.
func (s Segment) Timestamp() string {
	return FormatTimestamp(s.Start)
}

// maxTimestamp bounds FormatTimestamp input so the minute count fits an int.
const maxTimestamp = math.MaxInt32

// FormatTimestamp renders seconds as mm:ss where mm = floor(s/60) and
// ss = floor(s mod 60), both zero-padded to two digits. Negative, NaN and
// infinite inputs render as 00:00; finite values above maxTimestamp are
// clamped to it.
func FormatTimestamp(seconds float64) string {
	switch {
	case seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0):
		seconds = 0
	case seconds > maxTimestamp:
		seconds = maxTimestamp
	}
	mm := int(math.Floor(seconds / 60))
	ss := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", mm, ss)
}

// CapitalizeFirst upper-cases the first rune of s.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// markerRe matches [mm:ss] and [hh:mm:ss] transcript markers.
var markerRe = regexp.MustCompile(`\[(\d{2}):(\d{2})(?::(\d{2}))?\]`)

// ParseMarked splits a transcript string carrying inline [mm:ss] markers into
// segments. Text before the first marker starts at zero.
func ParseMarked(text string) []Segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	var segs []Segment
	add := func(start float64, body string) {
		body = strings.TrimSpace(body)
		if body != "" {
			segs = append(segs, Segment{Start: start, Text: body})
		}
	}

	if len(locs) == 0 {
		add(0, text)
		return segs
	}
	add(0, text[:locs[0][0]])
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		add(markerSeconds(text, loc), text[loc[1]:end])
	}
	return segs
}

func markerSeconds(text string, loc []int) float64 {
	a, _ := strconv.Atoi(text[loc[2]:loc[3]])
	b, _ := strconv.Atoi(text[loc[4]:loc[5]])
	if loc[6] < 0 {
		return float64(a*60 + b)
	}
	c, _ := strconv.Atoi(text[loc[6]:loc[7]])
	return float64(a*3600 + b*60 + c)
}

// DecodeTranscript accepts either a JSON array of {start, text} objects or a
// JSON string with inline markers, and returns segments ordered by start.
func DecodeTranscript(raw json.RawMessage) ([]Segment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var segs []Segment
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &segs); err != nil {
			return nil, fmt.Errorf("decode transcript segments: %w", err)
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode transcript text: %w", err)
		}
		segs = ParseMarked(s)
	default:
		return nil, fmt.Errorf("decode transcript: unexpected JSON %.20q", raw)
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs, nil
}
