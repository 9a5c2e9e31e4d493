package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/playback"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/tui"
	"github.com/fakeyudi/oculist/internal/upload"
)

var openCmd = &cobra.Command{
	Use:   "open <visit-id>",
	Short: "Open a visit to record, review and play it back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVisitID(args[0])
		if err != nil {
			return err
		}

		drafts, err := session.NewOutlineStore()
		if err != nil {
			return err
		}
		recordings, err := session.RecordingsDir()
		if err != nil {
			return err
		}

		client := newClient()
		player := playback.NewController(
			playback.ProbeDecoder{Command: cfg.ProbeCommand},
			playback.ProcessFactory{Command: cfg.PlayerCommand},
		)
		defer player.Close()

		return tui.Run(tui.Deps{
			VisitID:       id,
			Session:       session.New(client, drafts, cfg.OutlineTemplate),
			Recorder:      capture.NewRecorder(newMicrophone()),
			Uploads:       upload.NewCoordinator(client),
			Player:        player,
			Visits:        client,
			RecordingsDir: recordings,
		})
	},
}

// newMicrophone returns the configured capture source. Tests replace it.
var newMicrophone = func() capture.MicrophoneSource {
	args := cfg.CaptureCommand
	if len(args) == 0 {
		args = capture.DefaultCaptureArgs(cfg.InputFormat, cfg.InputDevice)
	}
	return &capture.CommandMicrophone{Args: args}
}

func init() {
	rootCmd.AddCommand(openCmd)
}
