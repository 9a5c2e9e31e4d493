package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/backend"
	"github.com/fakeyudi/oculist/internal/session"
	"github.com/fakeyudi/oculist/internal/summary"
)

var (
	outlineSet    []string
	outlineAdd    []string
	outlineRemove int
	outlineMove   string
	outlineReset  bool
)

var outlineCmd = &cobra.Command{
	Use:   "outline <visit-id>",
	Short: "Show or edit the structured summary outline sent with a visit's next recording",
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

		if outlineReset {
			if err := drafts.Delete(id); err != nil {
				return err
			}
		}

		current, err := currentOutline(cmd.Context(), drafts, newClient(), id)
		if err != nil {
			return err
		}
		ed := summary.NewEditor(current)
		changed, err := applyOutlineEdits(ed)
		if err != nil {
			return err
		}
		if changed {
			if err := drafts.Save(id, ed.Items()); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		for i, item := range ed.Items() {
			fmt.Fprintf(out, "%2d. %s\n", i+1, item)
		}
		return nil
	},
}

// storedOutlines looks up the outline a visit was last submitted with.
type storedOutlines interface {
	FetchTranscription(ctx context.Context, visitID int) (backend.Transcription, error)
}

// currentOutline returns the outline the next submission for a visit would
// send: an unsent draft, then the backend's stored outline, then the
// configured template.
func currentOutline(ctx context.Context, drafts session.OutlineStore, stored storedOutlines, id int) ([]string, error) {
	outline, err := drafts.Load(id)
	if err == nil && len(outline) > 0 {
		return outline, nil
	}
	if err != nil && !errors.Is(err, session.ErrNoDraft) {
		return nil, err
	}
	tr, err := stored.FetchTranscription(ctx, id)
	switch {
	case err != nil:
		// No recording yet, or the backend is unreachable.
		slog.Debug("no stored outline", "visit_id", id, "err", err)
	case len(tr.Bullets) > 0:
		return tr.Bullets, nil
	}
	if len(cfg.OutlineTemplate) > 0 {
		return append([]string{}, cfg.OutlineTemplate...), nil
	}
	return summary.DefaultOutline(), nil
}

// clearSentDraft deletes a visit's draft once it has been submitted. A draft
// edited after the outline was read for the submission is kept.
func clearSentDraft(drafts session.OutlineStore, id int, sent []string) error {
	draft, err := drafts.Load(id)
	switch {
	case errors.Is(err, session.ErrNoDraft):
		return nil
	case err != nil:
		return err
	case !slices.Equal(draft, sent):
		return nil
	}
	return drafts.Delete(id)
}

// applyOutlineEdits applies the edit flags in order: set, add, remove, move.
// Positions on the command line are 1-based.
func applyOutlineEdits(ed *summary.Editor) (bool, error) {
	changed := false
	if len(outlineSet) > 0 {
		ed.Reset(outlineSet)
		changed = true
	}
	for _, text := range outlineAdd {
		i := ed.Append(text)
		ed.EndEdit()
		if _, err := ed.Update(i, text); err != nil {
			return false, err
		}
		changed = true
	}
	if outlineRemove > 0 {
		if err := ed.Remove(outlineRemove - 1); err != nil {
			return false, err
		}
		changed = true
	}
	if outlineMove != "" {
		from, to, err := parseMove(outlineMove)
		if err != nil {
			return false, err
		}
		if err := ed.Move(from-1, to-1); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

func parseMove(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --move %q, want FROM:TO", s)
	}
	from, err1 := strconv.Atoi(strings.TrimSpace(a))
	to, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid --move %q, want FROM:TO", s)
	}
	return from, to, nil
}

func init() {
	outlineCmd.Flags().StringArrayVar(&outlineSet, "set", nil, "replace the outline (repeat for each bullet)")
	outlineCmd.Flags().StringArrayVar(&outlineAdd, "add", nil, "append a bullet (repeatable)")
	outlineCmd.Flags().IntVar(&outlineRemove, "remove", 0, "remove the bullet at this position")
	outlineCmd.Flags().StringVar(&outlineMove, "move", "", "move a bullet, as FROM:TO positions")
	outlineCmd.Flags().BoolVar(&outlineReset, "reset", false, "discard the draft and start from the template")
	rootCmd.AddCommand(outlineCmd)
}
