package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes <visit-id> <text|->",
	Short: "Replace the notes of a visit (\"-\" reads them from stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVisitID(args[0])
		if err != nil {
			return err
		}

		notes := args[1]
		if notes == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading notes: %w", err)
			}
			notes = strings.TrimRight(string(data), "\n")
		}

		if err := newClient().UpdateNotes(cmd.Context(), id, notes); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Notes saved.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)
}
