package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/visit"
)

var typeCmd = &cobra.Command{
	Use:   "type <visit-id> [type]",
	Short: "Show or change the type of a visit",
	Long:  "Show or change the type of a visit. Types: " + typeNames() + ".",
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
			fmt.Fprintf(cmd.OutOrStdout(), "Visit %d: %s (%s)\n", id, v.Type.Label(), v.Type)
			return nil
		}

		t, err := visit.ParseType(args[1])
		if err != nil {
			return err
		}
		if err := client.UpdateType(cmd.Context(), id, t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Visit %d is now %s.\n", id, t.Label())
		return nil
	},
}

func typeNames() string {
	names := make([]string, len(visit.Types))
	for i, t := range visit.Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(typeCmd)
}
