package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/visit"
)

var (
	visitsStatus string
	visitsType   string
)

var visitsCmd = &cobra.Command{
	Use:   "visits",
	Short: "List visits from the practice backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status visit.Status
		if visitsStatus != "" {
			st, err := visit.ParseStatus(visitsStatus)
			if err != nil {
				return err
			}
			status = st
		}
		var vt visit.Type
		if visitsType != "" {
			t, err := visit.ParseType(visitsType)
			if err != nil {
				return err
			}
			vt = t
		}

		visits, err := newClient().ListVisits(cmd.Context())
		if err != nil {
			return err
		}

		filtered := filterVisits(visits, status, vt)
		if len(filtered) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no visits")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), visitTable(filtered))
		return nil
	},
}

// filterVisits keeps visits matching status and type (empty matches all),
// ordered by appointment time.
func filterVisits(visits []visit.Visit, status visit.Status, vt visit.Type) []visit.Visit {
	var out []visit.Visit
	for _, v := range visits {
		if status != "" && v.Status != status {
			continue
		}
		if vt != "" && v.Type != vt {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppointmentTime.Before(out[j].AppointmentTime)
	})
	return out
}

func visitTable(visits []visit.Visit) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DATE", "STATUS", "TYPE", "DOCTOR", "PATIENT")
	for _, v := range visits {
		date := "-"
		if !v.AppointmentTime.IsZero() {
			date = v.AppointmentTime.Local().Format("2006-01-02 15:04")
		}
		t.Row(strconv.Itoa(v.ID), date, string(v.Status), v.Type.Label(), v.DoctorName, v.PatientName)
	}
	return t.String()
}

func init() {
	visitsCmd.Flags().StringVar(&visitsStatus, "status", "", fmt.Sprintf("only show visits with this status %v", visit.Statuses))
	visitsCmd.Flags().StringVar(&visitsType, "type", "", "only show visits of this type")
	rootCmd.AddCommand(visitsCmd)
}
