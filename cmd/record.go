package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/playback"
	"github.com/fakeyudi/oculist/internal/report"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/upload"
)

var recordDuration time.Duration

var recordCmd = &cobra.Command{
	Use:   "record <visit-id>",
	Short: "Record a visit without the interactive view and submit it",
	Long: "Record a visit from the microphone until Ctrl-C (or --duration), " +
		"upload it and print the resulting transcript and summary.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVisitID(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		drafts, err := session.NewOutlineStore()
		if err != nil {
			return err
		}
		recordings, err := session.RecordingsDir()
		if err != nil {
			return err
		}

		client := newClient()
		st := session.New(client, drafts, cfg.OutlineTemplate)
		if err := st.Open(cmd.Context(), id); err != nil {
			return err
		}
		if err := st.BeginRecording(); err != nil {
			return err
		}

		rec := capture.NewRecorder(newMicrophone())
		if err := rec.Start(cmd.Context()); err != nil {
			_ = st.CancelRecording()
			return err
		}

		waitCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if recordDuration > 0 {
			fmt.Fprintf(out, "Recording visit %d for %s… press Ctrl-C to stop early\n", id, recordDuration)
			select {
			case <-waitCtx.Done():
			case <-time.After(recordDuration):
			}
		} else {
			fmt.Fprintf(out, "Recording visit %d… press Ctrl-C to stop\n", id)
			<-waitCtx.Done()
		}

		art, ok := rec.Stop()
		if !ok || len(art.Data) == 0 {
			_ = st.CancelRecording()
			return errors.New("nothing was recorded")
		}

		var audio playback.Source
		path, err := capture.Save(recordings, fmt.Sprintf("visit-%d", id), art)
		if err != nil {
			slog.Warn("keeping local recording", "visit_id", id, "err", err)
		} else {
			audio = playback.Source(path)
		}

		seq, err := st.BeginUpload()
		if err != nil {
			return err
		}
		snap := st.Snapshot()
		fmt.Fprintf(out, "Uploading %d bytes…\n", len(art.Data))

		res, err := upload.NewCoordinator(client).Submit(cmd.Context(), art, id, snap.Visit.Type, snap.Outline)
		if err != nil {
			st.FailUpload(seq, err)
			if path != "" {
				return fmt.Errorf("%w (recording kept at %s)", err, path)
			}
			return err
		}
		st.ApplyResult(seq, res.Transcript, res.Summary, audio)

		snap = st.Snapshot()
		r := report.New(snap.Visit, snap.Transcript, snap.Summary, snap.Outline, string(snap.Audio))
		renderer, err := report.ForFormat("text", out)
		if err != nil {
			return err
		}
		data, err := renderer.Render(r)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "stop after this long (default: until Ctrl-C)")
	rootCmd.AddCommand(recordCmd)
}
