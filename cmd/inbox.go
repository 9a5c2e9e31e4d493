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

	"github.com/fakeyudi/oculist/internal/inbox"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/upload"
)

var inboxSettle time.Duration

var inboxCmd = &cobra.Command{
	Use:   "inbox [dir]",
	Short: "Watch a folder and submit recordings named visit-<id>*.webm",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.InboxDir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return errors.New("no inbox directory: pass one or set inbox_dir in the config")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating inbox: %w", err)
		}

		drafts, err := session.NewOutlineStore()
		if err != nil {
			return err
		}
		client := newClient()
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Files are handled one at a time, so sent needs no lock.
		sent := make(map[int][]string)
		w := &inbox.Watcher{
			Dir:       dir,
			Submitter: upload.NewCoordinator(client),
			Visits:    client,
			Outline: func(id int) []string {
				outline, err := currentOutline(ctx, drafts, client, id)
				if err != nil {
					slog.Warn("loading outline for inbox file", "visit_id", id, "err", err)
				}
				sent[id] = outline
				return outline
			},
			Settle: inboxSettle,
			OnEvent: func(ev inbox.Event) {
				if ev.Err != nil {
					fmt.Fprintf(out, "✗ visit %d: %v\n", ev.VisitID, ev.Err)
					return
				}
				if err := clearSentDraft(drafts, ev.VisitID, sent[ev.VisitID]); err != nil {
					slog.Warn("clearing outline draft", "visit_id", ev.VisitID, "err", err)
				}
				fmt.Fprintf(out, "✓ visit %d: %d transcript segments\n", ev.VisitID, len(ev.Result.Transcript))
			},
		}

		fmt.Fprintf(out, "Watching %s… press Ctrl-C to stop\n", dir)
		return w.Run(ctx)
	},
}

func init() {
	inboxCmd.Flags().DurationVar(&inboxSettle, "settle", 2*time.Second, "how long a file must stay unchanged before it is submitted")
	rootCmd.AddCommand(inboxCmd)
}
