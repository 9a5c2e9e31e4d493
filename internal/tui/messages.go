package tui

import (
	"time"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/playback"
	"github.com/fakeyudi/oculist/internal/upload"
	"github.com/fakeyudi/oculist/internal/visit"
)

// visitLoadedMsg is sent when the session finished opening the visit.
type visitLoadedMsg struct {
	err error
}

// recordingStartedMsg carries the result of starting the microphone.
type recordingStartedMsg struct {
	err error
}

// recordingStoppedMsg carries the finalized recording, if there was one.
type recordingStoppedMsg struct {
	artifact capture.Artifact
	ok       bool
}

// uploadDoneMsg carries the response to submission seq.
type uploadDoneMsg struct {
	seq    uint64
	result upload.Result
	audio  playback.Source
	err    error
}

// audioLoadedMsg is sent when the player has a new source.
type audioLoadedMsg struct {
	source playback.Source
	err    error
}

// tickMsg refreshes the clock while recording or playing.
type tickMsg time.Time

// notesDebounceMsg fires once typing in the notes editor has paused.
type notesDebounceMsg struct {
	seq int
}

// notesSavedMsg carries the result of saving notes.
type notesSavedMsg struct {
	seq   int
	notes string
	err   error
}

// visitUpdatedMsg carries the result of a status or type change.
type visitUpdatedMsg struct {
	visit visit.Visit
	err   error
}
