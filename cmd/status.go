package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/visit"
)

var statusCmd = &cobra.Command{
	Use:   "status <visit-id> [scheduled|completed|canceled]",
	Short: "Show or change the status of a visit",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVisitID(args[0])
		if err != nil {
			return err
		}
		client := newClient()

		if len(args) == 1 {
			v, err := client.GetVisit(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Visit %d: %s\n", id, v.Status)
			return nil
		}

		st, err := visit.ParseStatus(args[1])
		if err != nil {
			return err
		}
		if err := client.UpdateStatus(cmd.Context(), id, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Visit %d marked %s.\n", id, st)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
