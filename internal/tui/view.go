package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/report"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/summary"
	"github.com/fakeyudi/oculist/internal/visit"
)

// placeholder is shown in place of an empty transcript or summary.
const placeholder = "Waiting for recording…"

// View renders the full TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.deps.Session.Snapshot()

	var sb strings.Builder
	sb.WriteString(m.renderTitle(snap))
	sb.WriteByte('\n')
	sb.WriteString(m.renderTabs())
	sb.WriteByte('\n')
	sb.WriteString(m.viewport.View())
	sb.WriteByte('\n')
	sb.WriteString(m.renderPlayer())
	sb.WriteByte('\n')
	sb.WriteString(m.renderAlert(snap))
	sb.WriteByte('\n')
	sb.WriteString(m.renderStatusBar())
	return sb.String()
}

func (m Model) renderTitle(snap session.Snapshot) string {
	title := fmt.Sprintf("Visit #%d", m.deps.VisitID)
	if v := snap.Visit; v.ID != 0 {
		title = fmt.Sprintf("Visit #%d  %s · %s · %s · %s",
			v.ID, v.PatientName, v.DoctorName, v.Type.Label(), v.Status)
	}
	return titleStyle.Width(m.width).Render(title)
}

func (m Model) renderTabs() string {
	var parts []string
	for i, name := range tabNames {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		if tabID(i) == m.activeTab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
		if i < len(tabNames)-1 {
			parts = append(parts, tabSepStyle.Render("│"))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return lipgloss.NewStyle().Background(lipgloss.Color("235")).Width(m.width).Render(row)
}

// panelContent renders the body of the active tab.
func (m Model) panelContent() string {
	snap := m.deps.Session.Snapshot()
	loading := snap.Phase == session.PhaseUploading || snap.Lifecycle == session.LifecycleLoadingVisit

	switch m.activeTab {
	case tabTranscript:
		if loading {
			return m.spinner.View() + " Transcribing…"
		}
		return renderTranscript(snap.Transcript, m.transcriptCursor)
	case tabSummary:
		if loading {
			return m.spinner.View() + " Summarizing…"
		}
		return renderSummary(snap.Summary, m.width)
	case tabOutline:
		if !snap.Visit.Type.Structured() {
			return dimStyle.Render(fmt.Sprintf("Outline editing is available for %s visits.", visit.TypeSpecial.Label()))
		}
		return m.renderOutline()
	case tabNotes:
		return m.notes.View()
	}
	return ""
}

// renderTranscript lists one "[mm:ss] Text" row per segment.
func renderTranscript(segs []visit.Segment, cursor int) string {
	if len(segs) == 0 {
		return dimStyle.Render(placeholder)
	}
	rows := make([]string, len(segs))
	for i, seg := range segs {
		ts := "[" + seg.Timestamp() + "]"
		text := visit.CapitalizeFirst(seg.Text)
		if i == cursor {
			rows[i] = selectedRowStyle.Render(ts + " " + text)
		} else {
			rows[i] = timeStyle.Render(ts) + " " + text
		}
	}
	return strings.Join(rows, "\n")
}

// renderSummary renders one block per point: the bold label, then the body.
func renderSummary(text string, width int) string {
	points := summary.Parse(text)
	if len(points) == 0 {
		return dimStyle.Render(placeholder)
	}
	body := lipgloss.NewStyle().PaddingLeft(2).Width(max(width-2, 10))
	var blocks []string
	for _, b := range report.SummaryBlocks(points) {
		blocks = append(blocks, labelStyle.Render(b[0])+"\n"+body.Render(b[1]))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderOutline() string {
	items := m.outline.Items()
	if len(items) == 0 {
		return dimStyle.Render("No bullets. Press a to add one.")
	}
	editing := m.outline.Editing()
	rows := make([]string, len(items))
	for i, item := range items {
		switch {
		case i == editing:
			rows[i] = bulletStyle.Render("•") + " " + m.bulletInput.View()
		case i == m.outlineCursor:
			rows[i] = selectedRowStyle.Render("• " + item)
		default:
			rows[i] = bulletStyle.Render("•") + " " + item
		}
	}
	return strings.Join(rows, "\n")
}

// renderPlayer shows play state, position, a progress bar and the rate.
func (m Model) renderPlayer() string {
	p := m.deps.Player
	if p.Source() == "" {
		return dimStyle.Render("  no audio")
	}
	icon := "▶"
	if p.Playing() {
		icon = "⏸"
	}
	pos, dur := p.Position(), p.Duration()
	clock := fmt.Sprintf(" %s %s / %s ", icon, visit.FormatTimestamp(pos), visit.FormatTimestamp(dur))
	rate := fmt.Sprintf(" %.2fx", p.Rate())

	barWidth := max(m.width-lipgloss.Width(clock)-lipgloss.Width(rate)-2, 0)
	return clock + progressBar(pos, dur, barWidth) + rate
}

func progressBar(pos, dur float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if dur > 0 {
		filled = min(int(pos/dur*float64(width)), width)
	}
	return progressFillStyle.Render(strings.Repeat("━", filled)) +
		progressEmptyStyle.Render(strings.Repeat("─", width-filled))
}

// renderAlert shows the recording indicator, an error, or the last
// confirmation, in that order of priority.
func (m Model) renderAlert(snap session.Snapshot) string {
	switch {
	case m.deps.Recorder.State() == capture.StateRecording:
		elapsed := time.Duration(0)
		if !m.recordingSince.IsZero() {
			elapsed = time.Since(m.recordingSince)
		}
		return recStyle.Render("● REC " + visit.FormatTimestamp(elapsed.Seconds()))
	case m.alert != "":
		return alertStyle.Render(m.alert)
	case snap.Phase == session.PhaseUploading:
		return m.spinner.View() + " Uploading recording…"
	case snap.Phase == session.PhaseError && snap.Err != nil:
		return alertStyle.Render("Upload failed: " + snap.Err.Error())
	case m.flash != "":
		return okStyle.Render(m.flash)
	}
	return ""
}

func (m Model) renderStatusBar() string {
	editing := m.outline.Editing() >= 0 || m.notes.Focused()
	hint := m.help.View(panelKeys{tab: m.activeTab, editing: editing})
	if m.activeTab == tabSummary && m.viewport.TotalLineCount() > m.viewport.Height {
		hint += fmt.Sprintf("  %3.f%%", m.viewport.ScrollPercent()*100)
	}
	return statusBarStyle.Width(m.width).Render(hint)
}
