// Package report renders a loaded visit for non-interactive output.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/fakeyudi/oculist/internal/summary"
	"github.com/fakeyudi/oculist/internal/visit"
)

// Report is everything known about one visit.
type Report struct {
	Visit       visit.Visit     `json:"visit"`
	Transcript  []visit.Segment `json:"transcript"`
	Summary     string          `json:"summary"`
	Points      []summary.Point `json:"points"`
	Outline     []string        `json:"outline,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	GeneratedBy string          `json:"generated_by,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// New builds a report, parsing the summary into points.
func New(v visit.Visit, transcript []visit.Segment, summaryText string, outline []string, audioURL string) *Report {
	r := &Report{
		Visit:       v,
		Transcript:  transcript,
		Summary:     summaryText,
		Points:      summary.Parse(summaryText),
		AudioURL:    audioURL,
		GeneratedAt: time.Now().UTC(),
	}
	if v.Type.Structured() {
		r.Outline = outline
	}
	if r.Transcript == nil {
		r.Transcript = []visit.Segment{}
	}
	if r.Points == nil {
		r.Points = []summary.Point{}
	}
	return r
}

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// ForFormat returns the renderer for "text", "markdown", "html" or "json".
func ForFormat(format string, out io.Writer) (Renderer, error) {
	switch format {
	case "", "text":
		return &TextRenderer{Renderer: lipgloss.NewRenderer(out)}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "html":
		return &HTMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want text, markdown, html or json)", format)
	}
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (j *JSONRenderer) Render(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarkdownRenderer renders a Report as Markdown.
type MarkdownRenderer struct{}

func (m *MarkdownRenderer) Render(r *Report) ([]byte, error) {
	var sb strings.Builder
	v := r.Visit

	fmt.Fprintf(&sb, "# Visit %d: %s with %s\n\n", v.ID, v.PatientName, v.DoctorName)

	sb.WriteString("## Details\n\n")
	fmt.Fprintf(&sb, "- Date: %s\n", formatTime(v.AppointmentTime))
	fmt.Fprintf(&sb, "- Type: %s\n", v.Type.Label())
	fmt.Fprintf(&sb, "- Status: %s\n", v.Status)
	if r.AudioURL != "" {
		fmt.Fprintf(&sb, "- Recording: %s\n", r.AudioURL)
	}
	if r.GeneratedBy != "" {
		fmt.Fprintf(&sb, "- Prepared by: %s\n", r.GeneratedBy)
	}
	sb.WriteString("\n")

	sb.WriteString("## Notes\n\n")
	if strings.TrimSpace(v.Notes) == "" {
		sb.WriteString("_No notes._\n")
	} else {
		sb.WriteString(strings.TrimSpace(v.Notes))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	if len(r.Points) == 0 {
		sb.WriteString("_No summary yet._\n")
	} else {
		for _, p := range r.Points {
			fmt.Fprintf(&sb, "- **%s:** %s\n", p.Label, p.Body)
		}
	}
	sb.WriteString("\n")

	if len(r.Outline) > 0 {
		sb.WriteString("## Outline\n\n")
		for i, item := range r.Outline {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Transcript\n\n")
	if len(r.Transcript) == 0 {
		sb.WriteString("_Waiting for recording._\n")
	} else {
		for _, seg := range r.Transcript {
			fmt.Fprintf(&sb, "- `[%s]` %s\n", seg.Timestamp(), visit.CapitalizeFirst(seg.Text))
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// HTMLRenderer renders the Markdown form of a Report as a standalone HTML page.
type HTMLRenderer struct{}

func (h *HTMLRenderer) Render(r *Report) ([]byte, error) {
	md, err := (&MarkdownRenderer{}).Render(r)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := goldmark.New(goldmark.WithExtensions(extension.GFM)).Convert(md, &body); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>Visit %d</title>\n", r.Visit.ID)
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// TextRenderer renders a Report for a terminal. Styling is dropped when the
// renderer's output is not a color terminal.
type TextRenderer struct {
	Renderer *lipgloss.Renderer
}

func (t *TextRenderer) Render(r *Report) ([]byte, error) {
	lr := t.Renderer
	if lr == nil {
		lr = lipgloss.NewRenderer(io.Discard)
	}
	heading := lr.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	label := lr.NewStyle().Bold(true)
	dim := lr.NewStyle().Foreground(lipgloss.Color("240"))
	stamp := lr.NewStyle().Foreground(lipgloss.Color("178"))

	var sb strings.Builder
	v := r.Visit

	fmt.Fprintf(&sb, "%s\n", heading.Render(fmt.Sprintf("Visit %d · %s", v.ID, v.PatientName)))
	fmt.Fprintf(&sb, "%s %s\n", label.Render("Doctor:"), v.DoctorName)
	fmt.Fprintf(&sb, "%s %s\n", label.Render("Date:"), formatTime(v.AppointmentTime))
	fmt.Fprintf(&sb, "%s %s\n", label.Render("Type:"), v.Type.Label())
	fmt.Fprintf(&sb, "%s %s\n", label.Render("Status:"), v.Status)
	if notes := strings.TrimSpace(v.Notes); notes != "" {
		fmt.Fprintf(&sb, "%s %s\n", label.Render("Notes:"), notes)
	}
	sb.WriteString("\n")

	sb.WriteString(heading.Render("Summary") + "\n")
	if len(r.Points) == 0 {
		sb.WriteString(dim.Render("No summary yet.") + "\n")
	}
	for _, block := range SummaryBlocks(r.Points) {
		sb.WriteString(label.Render(block[0]) + "\n")
		if block[1] != "" {
			sb.WriteString(block[1] + "\n")
		}
	}
	sb.WriteString("\n")

	sb.WriteString(heading.Render("Transcript") + "\n")
	if len(r.Transcript) == 0 {
		sb.WriteString(dim.Render("Waiting for recording…") + "\n")
	}
	for _, seg := range r.Transcript {
		fmt.Fprintf(&sb, "%s %s\n", stamp.Render("["+seg.Timestamp()+"]"), visit.CapitalizeFirst(seg.Text))
	}

	return []byte(sb.String()), nil
}

// SummaryBlocks returns one ("• Label:", body) pair per summary point.
func SummaryBlocks(points []summary.Point) [][2]string {
	blocks := make([][2]string, 0, len(points))
	for _, p := range points {
		blocks = append(blocks, [2]string{"• " + p.Label + ":", p.Body})
	}
	return blocks
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unscheduled"
	}
	return t.Format("2006-01-02 15:04")
}
