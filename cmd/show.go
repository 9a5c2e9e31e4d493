package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/report"
	"github.com/fakeyudi/oculist/internal/session"
)

var (
	showFormat string
	showOutput string
)

var showCmd = &cobra.Command{
	Use:   "show <visit-id>",
	Short: "Print a visit with its transcript and summary",
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
		st := session.New(newClient(), drafts, cfg.OutlineTemplate)
		if err := st.Open(cmd.Context(), id); err != nil {
			return err
		}
		snap := st.Snapshot()

		r := report.New(snap.Visit, snap.Transcript, snap.Summary, snap.Outline, string(snap.Audio))
		if p := GetProfile(); p != nil {
			r.GeneratedBy = p.Name
		}

		format := showFormat
		if format == "" && activeProfile != nil {
			format = activeProfile.DefaultFormat
		}

		out := cmd.OutOrStdout()
		if showOutput != "" {
			f, err := os.Create(showOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", showOutput, err)
			}
			defer f.Close()
			out = f
		}

		renderer, err := report.ForFormat(format, out)
		if err != nil {
			return err
		}
		data, err := renderer.Render(r)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		if showOutput != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", showOutput)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "", "output format: text, markdown, html or json (default from profile, else text)")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(showCmd)
}
