package devbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/fakeyudi/oculist/internal/visit"
)

// EchoTranscriber produces a deterministic placeholder transcript sized from
// the recording, and a summary that follows the outline for structured visits.
type EchoTranscriber struct{}

func (EchoTranscriber) Transcribe(ctx context.Context, audio []byte, visitType visit.Type, bullets []string) ([]visit.Segment, string, error) {
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("empty recording")
	}
	segs := []visit.Segment{
		{Start: 0, Text: fmt.Sprintf("recording received, %d bytes", len(audio))},
		{Start: 5, Text: fmt.Sprintf("visit type %s", visitType.Label())},
	}

	var sb strings.Builder
	if visitType.Structured() && len(bullets) > 0 {
		for _, b := range bullets {
			fmt.Fprintf(&sb, "- %s: not discussed\n", b)
		}
	} else {
		fmt.Fprintf(&sb, "- Recording: %d bytes received\n", len(audio))
		fmt.Fprintf(&sb, "- Visit type: %s\n", visitType.Label())
	}
	return segs, strings.TrimRight(sb.String(), "\n"), nil
}
