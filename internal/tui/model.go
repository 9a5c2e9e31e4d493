// Package tui is the interactive visit view: record a visit, follow the
// upload, read the transcript and summary, play the audio back and edit the
// outline and notes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/playback"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/summary"
	"github.com/fakeyudi/oculist/internal/upload"
	"github.com/fakeyudi/oculist/internal/visit"
)

const (
	seekStep       = 5.0
	tickInterval   = 250 * time.Millisecond
	notesDebounce  = time.Second
	chromeLines    = 5 // title, tabs, player bar, alert line, status bar
	defaultWidth   = 80
	defaultHeight  = 24
	notesMinHeight = 3
)

// rateSteps are the playback rates offered by the +/- keys.
var rateSteps = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

type tabID int

const (
	tabTranscript tabID = iota
	tabSummary
	tabOutline
	tabNotes
	tabCount
)

var tabNames = [tabCount]string{"Transcript", "Summary", "Outline", "Notes"}

// VisitUpdater saves edits to the visit record.
type VisitUpdater interface {
	UpdateNotes(ctx context.Context, id int, notes string) error
	UpdateStatus(ctx context.Context, id int, status visit.Status) error
	UpdateType(ctx context.Context, id int, t visit.Type) error
}

// Deps are the collaborators of the visit view.
type Deps struct {
	VisitID  int
	Session  *session.State
	Recorder *capture.Recorder
	Uploads  *upload.Coordinator
	Player   *playback.Controller
	Visits   VisitUpdater
	// RecordingsDir keeps a local copy of each recording for playback.
	// Empty disables the copy.
	RecordingsDir string
}

// Model is the bubbletea model of the visit view.
type Model struct {
	deps Deps
	ctx  context.Context

	width  int
	height int

	activeTab tabID
	viewport  viewport.Model
	spinner   spinner.Model
	help      help.Model

	transcriptCursor int
	outlineCursor    int
	outline          *summary.Editor
	bulletInput      textinput.Model

	notes      textarea.Model
	notesSeq   int
	savedNotes string

	recordingSince time.Time
	ticking        bool
	alert          string
	flash          string
	quitting       bool
}

// New returns the view for deps.VisitID. Nothing is loaded until Init runs.
func New(deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 200

	ta := textarea.New()
	ta.Placeholder = "Visit notes…"
	ta.ShowLineNumbers = false

	m := Model{
		deps:        deps,
		ctx:         context.Background(),
		width:       defaultWidth,
		height:      defaultHeight,
		spinner:     sp,
		help:        help.New(),
		outline:     summary.NewEditor(nil),
		bulletInput: in,
		notes:       ta,
	}
	m.resize()
	return m
}

// Init opens the visit and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.openVisit())
}

// Update handles incoming messages and key events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case visitLoadedMsg:
		cmd = m.handleVisitLoaded(msg)

	case recordingStartedMsg:
		cmd = m.handleRecordingStarted(msg)

	case recordingStoppedMsg:
		cmd = m.handleRecordingStopped(msg)

	case uploadDoneMsg:
		cmd = m.handleUploadDone(msg)

	case audioLoadedMsg:
		if msg.err != nil {
			m.alert = "Audio unavailable: " + msg.err.Error()
		}

	case tickMsg:
		cmd = m.handleTick()

	case notesDebounceMsg:
		if msg.seq == m.notesSeq && m.notes.Value() != m.savedNotes {
			cmd = m.saveNotes(msg.seq, m.notes.Value())
		}

	case notesSavedMsg:
		if msg.err != nil {
			m.alert = "Saving notes failed: " + msg.err.Error()
			break
		}
		m.savedNotes = msg.notes
		if msg.seq == m.notesSeq {
			m.flash = "Notes saved"
		}

	case visitUpdatedMsg:
		if msg.err != nil {
			m.alert = "Update failed: " + msg.err.Error()
		} else {
			m.deps.Session.SetVisit(msg.visit)
			m.flash = fmt.Sprintf("%s · %s", msg.visit.Status, msg.visit.Type.Label())
		}
	}

	m.refresh()
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		cmd := m.quit()
		return m, cmd
	}

	// Text editors own the keyboard while focused.
	if m.outline.Editing() >= 0 {
		return m.handleBulletInput(msg)
	}
	if m.notes.Focused() {
		return m.handleNotesInput(msg)
	}

	m.alert = ""
	m.flash = ""

	switch {
	case key.Matches(msg, keys.Quit):
		cmd := m.quit()
		return m, cmd
	case key.Matches(msg, keys.NextTab):
		m.activeTab = (m.activeTab + 1) % tabCount
		m.viewport.GotoTop()
	case key.Matches(msg, keys.PrevTab):
		m.activeTab = (m.activeTab + tabCount - 1) % tabCount
		m.viewport.GotoTop()
	case key.Matches(msg, keys.JumpTab):
		m.activeTab = tabID(msg.Runes[0] - '1')
		m.viewport.GotoTop()
	case key.Matches(msg, keys.Record):
		cmd := m.toggleRecording()
		return m, cmd
	case key.Matches(msg, keys.Abort):
		m.abortRecording()
	case key.Matches(msg, keys.PlayPause):
		cmd := m.togglePlayback()
		return m, cmd
	case key.Matches(msg, keys.SeekBack):
		m.seekBy(-seekStep)
	case key.Matches(msg, keys.SeekFwd):
		m.seekBy(seekStep)
	case key.Matches(msg, keys.Faster):
		m.stepRate(1)
	case key.Matches(msg, keys.Slower):
		m.stepRate(-1)
	case key.Matches(msg, keys.Status):
		cmd := m.cycleStatus()
		return m, cmd
	case key.Matches(msg, keys.Type):
		cmd := m.cycleType()
		return m, cmd
	default:
		return m.handlePanelKey(msg)
	}
	return m, nil
}

func (m Model) handlePanelKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.activeTab {
	case tabTranscript:
		segs := m.deps.Session.Snapshot().Transcript
		switch {
		case key.Matches(msg, keys.Up):
			if m.transcriptCursor > 0 {
				m.transcriptCursor--
			}
		case key.Matches(msg, keys.Down):
			if m.transcriptCursor < len(segs)-1 {
				m.transcriptCursor++
			}
		case key.Matches(msg, keys.Select):
			if m.transcriptCursor < len(segs) {
				m.jumpTo(segs[m.transcriptCursor])
			}
		}
		m.followCursor(m.transcriptCursor)

	case tabOutline:
		if !m.structured() {
			break
		}
		return m.handleOutlineKey(msg)

	case tabNotes:
		if key.Matches(msg, keys.Edit, keys.Select) {
			cmd := m.notes.Focus()
			return m, cmd
		}

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleOutlineKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	n := m.outline.Len()
	var err error
	changed := false

	switch {
	case key.Matches(msg, keys.Up):
		if m.outlineCursor > 0 {
			m.outlineCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.outlineCursor < n-1 {
			m.outlineCursor++
		}
	case key.Matches(msg, keys.Append):
		m.outlineCursor = m.outline.Append("")
		cmd := m.focusBulletInput()
		return m.withOutlineSaved(true), cmd
	case key.Matches(msg, keys.Edit, keys.Select):
		if err = m.outline.BeginEdit(m.outlineCursor); err == nil {
			cmd := m.focusBulletInput()
			return m, cmd
		}
	case key.Matches(msg, keys.Delete):
		if err = m.outline.Remove(m.outlineCursor); err == nil {
			changed = true
			if m.outlineCursor >= m.outline.Len() && m.outlineCursor > 0 {
				m.outlineCursor--
			}
		}
	case key.Matches(msg, keys.MoveDown):
		if m.outlineCursor < n-1 {
			if err = m.outline.Move(m.outlineCursor, m.outlineCursor+1); err == nil {
				m.outlineCursor++
				changed = true
			}
		}
	case key.Matches(msg, keys.MoveUp):
		if m.outlineCursor > 0 {
			if err = m.outline.Move(m.outlineCursor, m.outlineCursor-1); err == nil {
				m.outlineCursor--
				changed = true
			}
		}
	}
	if err != nil {
		m.alert = err.Error()
	}
	m.followCursor(m.outlineCursor)
	return m.withOutlineSaved(changed), nil
}

func (m Model) handleBulletInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	i := m.outline.Editing()
	switch msg.Type {
	case tea.KeyEnter:
		changed, err := m.outline.Update(i, m.bulletInput.Value())
		if err != nil {
			m.alert = err.Error()
		}
		m.outline.EndEdit()
		m.bulletInput.Blur()
		return m.withOutlineSaved(changed), nil
	case tea.KeyEsc:
		m.outline.EndEdit()
		m.bulletInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.bulletInput, cmd = m.bulletInput.Update(msg)
	return m, cmd
}

func (m Model) handleNotesInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.notes.Blur()
		if m.notes.Value() != m.savedNotes {
			m.notesSeq++
			return m, m.saveNotes(m.notesSeq, m.notes.Value())
		}
		return m, nil
	}

	before := m.notes.Value()
	var cmd tea.Cmd
	m.notes, cmd = m.notes.Update(msg)
	if m.notes.Value() == before {
		return m, cmd
	}
	m.notesSeq++
	seq := m.notesSeq
	debounce := tea.Tick(notesDebounce, func(time.Time) tea.Msg {
		return notesDebounceMsg{seq: seq}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m Model) withOutlineSaved(changed bool) Model {
	if changed {
		m.deps.Session.SetOutline(m.outline.Items())
	}
	return m
}

func (m *Model) focusBulletInput() tea.Cmd {
	items := m.outline.Items()
	i := m.outline.Editing()
	if i < 0 || i >= len(items) {
		return nil
	}
	m.bulletInput.SetValue(items[i])
	m.bulletInput.CursorEnd()
	return m.bulletInput.Focus()
}

// ── Commands ────────────

func (m Model) openVisit() tea.Cmd {
	s, id, ctx := m.deps.Session, m.deps.VisitID, m.ctx
	return func() tea.Msg {
		return visitLoadedMsg{err: s.Open(ctx, id)}
	}
}

func (m *Model) handleVisitLoaded(msg visitLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.alert = "Could not load visit: " + msg.err.Error()
		return nil
	}
	snap := m.deps.Session.Snapshot()
	m.outline.Reset(snap.Outline)
	m.outlineCursor = 0
	m.transcriptCursor = 0
	m.notes.SetValue(snap.Visit.Notes)
	m.savedNotes = snap.Visit.Notes
	if snap.Audio != "" {
		return m.loadAudio(snap.Audio)
	}
	return nil
}

func (m *Model) toggleRecording() tea.Cmd {
	if m.deps.Recorder.State() == capture.StateRecording {
		rec := m.deps.Recorder
		return func() tea.Msg {
			art, ok := rec.Stop()
			return recordingStoppedMsg{artifact: art, ok: ok}
		}
	}

	if err := m.deps.Session.BeginRecording(); err != nil {
		m.alert = recordingBlocked(err)
		return nil
	}
	rec, ctx := m.deps.Recorder, m.ctx
	return func() tea.Msg {
		return recordingStartedMsg{err: rec.Start(ctx)}
	}
}

func recordingBlocked(err error) string {
	if errors.Is(err, session.ErrInvalidTransition) {
		return "Cannot record now: " + err.Error()
	}
	return err.Error()
}

func (m *Model) handleRecordingStarted(msg recordingStartedMsg) tea.Cmd {
	if msg.err != nil {
		_ = m.deps.Session.CancelRecording()
		switch {
		case errors.Is(msg.err, capture.ErrPermissionDenied):
			m.alert = "Microphone access was denied."
		case errors.Is(msg.err, capture.ErrDeviceUnavailable):
			m.alert = "No microphone available."
		default:
			m.alert = "Could not start recording: " + msg.err.Error()
		}
		return nil
	}
	m.recordingSince = time.Now()
	if m.deps.Player.Playing() {
		_ = m.deps.Player.Pause()
	}
	return m.startTicking()
}

func (m *Model) handleRecordingStopped(msg recordingStoppedMsg) tea.Cmd {
	m.recordingSince = time.Time{}
	if !msg.ok {
		_ = m.deps.Session.CancelRecording()
		return nil
	}
	if len(msg.artifact.Data) == 0 {
		_ = m.deps.Session.CancelRecording()
		m.alert = "Nothing was recorded."
		return nil
	}

	seq, err := m.deps.Session.BeginUpload()
	if err != nil {
		m.alert = err.Error()
		return nil
	}

	snap := m.deps.Session.Snapshot()
	var audio playback.Source
	if m.deps.RecordingsDir != "" {
		path, err := capture.Save(m.deps.RecordingsDir, fmt.Sprintf("visit-%d", snap.VisitID), msg.artifact)
		if err != nil {
			slog.Warn("keeping local recording", "visit_id", snap.VisitID, "err", err)
		} else {
			audio = playback.Source(path)
		}
	}

	uploads, art := m.deps.Uploads, msg.artifact
	id, vt, outline := snap.VisitID, snap.Visit.Type, snap.Outline
	return func() tea.Msg {
		// Uploads are not cancelled with the view; the client timeout bounds them.
		res, err := uploads.Submit(context.Background(), art, id, vt, outline)
		return uploadDoneMsg{seq: seq, result: res, audio: audio, err: err}
	}
}

func (m *Model) handleUploadDone(msg uploadDoneMsg) tea.Cmd {
	if msg.err != nil {
		if m.deps.Session.FailUpload(msg.seq, msg.err) {
			m.alert = "Upload failed: " + msg.err.Error()
		}
		return nil
	}
	if !m.deps.Session.ApplyResult(msg.seq, msg.result.Transcript, msg.result.Summary, msg.audio) {
		return nil
	}
	m.transcriptCursor = 0
	m.flash = "Transcription ready"
	if msg.audio != "" {
		return m.loadAudio(msg.audio)
	}
	return nil
}

func (m Model) loadAudio(src playback.Source) tea.Cmd {
	p, ctx := m.deps.Player, m.ctx
	return func() tea.Msg {
		return audioLoadedMsg{source: src, err: p.Load(ctx, src)}
	}
}

func (m *Model) abortRecording() {
	if m.deps.Recorder.State() != capture.StateRecording {
		return
	}
	m.deps.Recorder.Abort()
	_ = m.deps.Session.CancelRecording()
	m.recordingSince = time.Time{}
	m.flash = "Recording discarded"
}

func (m *Model) togglePlayback() tea.Cmd {
	if err := m.deps.Player.Toggle(); err != nil {
		if errors.Is(err, playback.ErrNoSource) {
			m.alert = "No audio for this visit yet."
		} else {
			m.alert = "Playback: " + err.Error()
		}
		return nil
	}
	if m.deps.Player.Playing() {
		return m.startTicking()
	}
	return nil
}

func (m *Model) seekBy(delta float64) {
	p := m.deps.Player
	if err := p.SeekToSeconds(max(0, p.Position()+delta)); err != nil {
		m.alert = "Seek: " + err.Error()
	}
}

func (m *Model) jumpTo(seg visit.Segment) {
	if err := m.deps.Player.SeekToSeconds(seg.Start); err != nil {
		m.alert = "Seek: " + err.Error()
		return
	}
	m.flash = "Jumped to " + seg.Timestamp()
}

func (m *Model) stepRate(dir int) {
	p := m.deps.Player
	cur := p.Rate()
	i := 0
	for j, r := range rateSteps {
		if r <= cur+1e-9 {
			i = j
		}
	}
	i = min(max(i+dir, 0), len(rateSteps)-1)
	if err := p.SetRate(rateSteps[i]); err != nil {
		m.alert = "Rate: " + err.Error()
	}
}

func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) handleTick() tea.Cmd {
	p := m.deps.Player
	if p.Playing() && p.Duration() > 0 && p.Position() >= p.Duration() {
		_ = p.Pause()
	}
	if p.Playing() || m.deps.Recorder.State() == capture.StateRecording {
		return tick()
	}
	m.ticking = false
	return nil
}

func (m Model) saveNotes(seq int, notes string) tea.Cmd {
	u, ctx, id := m.deps.Visits, m.ctx, m.deps.VisitID
	return func() tea.Msg {
		return notesSavedMsg{seq: seq, notes: notes, err: u.UpdateNotes(ctx, id, notes)}
	}
}

func (m *Model) cycleStatus() tea.Cmd {
	v := m.deps.Session.Snapshot().Visit
	if v.ID == 0 {
		return nil
	}
	v.Status = next(visit.Statuses, v.Status)
	u, ctx := m.deps.Visits, m.ctx
	return func() tea.Msg {
		return visitUpdatedMsg{visit: v, err: u.UpdateStatus(ctx, v.ID, v.Status)}
	}
}

func (m *Model) cycleType() tea.Cmd {
	snap := m.deps.Session.Snapshot()
	if snap.Visit.ID == 0 {
		return nil
	}
	if snap.Phase == session.PhaseRecording || snap.Phase == session.PhaseUploading {
		m.alert = "Visit type is locked while " + snap.Phase.String()
		return nil
	}
	v := snap.Visit
	v.Type = next(visit.Types, v.Type)
	u, ctx := m.deps.Visits, m.ctx
	return func() tea.Msg {
		return visitUpdatedMsg{visit: v, err: u.UpdateType(ctx, v.ID, v.Type)}
	}
}

// next returns the element after cur in all, wrapping around. An unknown cur
// yields the first element.
func next[T comparable](all []T, cur T) T {
	for i, v := range all {
		if v == cur {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.deps.Recorder.Abort()
	if err := m.deps.Player.Close(); err != nil {
		slog.Warn("closing player", "err", err)
	}
	var cmds []tea.Cmd
	if m.notes.Value() != m.savedNotes {
		cmds = append(cmds, m.saveNotesSync(m.notes.Value()))
	}
	return tea.Sequence(append(cmds, tea.Quit)...)
}

// saveNotesSync saves notes before the program exits.
func (m Model) saveNotesSync(notes string) tea.Cmd {
	u, id := m.deps.Visits, m.deps.VisitID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.UpdateNotes(ctx, id, notes); err != nil {
			slog.Warn("saving notes on exit", "visit_id", id, "err", err)
		}
		return nil
	}
}

func (m Model) structured() bool {
	return m.deps.Session.Snapshot().Visit.Type.Structured()
}

// ── Layout ────────────

func (m *Model) resize() {
	h := max(m.height-chromeLines, 1)
	m.viewport = viewport.New(m.width, h)
	m.notes.SetWidth(max(m.width-2, 10))
	m.notes.SetHeight(max(h-2, notesMinHeight))
	m.bulletInput.Width = max(m.width-8, 10)
	m.help.Width = m.width
}

// refresh rebuilds the active panel's content.
func (m *Model) refresh() {
	offset := m.viewport.YOffset
	m.viewport.SetContent(m.panelContent())
	m.viewport.SetYOffset(offset)
}

// followCursor scrolls so that line stays visible.
func (m *Model) followCursor(line int) {
	m.refresh()
	switch {
	case line < m.viewport.YOffset:
		m.viewport.SetYOffset(line)
	case line >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

// Run opens the visit view full-screen and blocks until the user quits.
func Run(deps Deps) error {
	p := tea.NewProgram(New(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
