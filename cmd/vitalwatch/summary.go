package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			s, err := c.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd, s)
			}

			st := newStyles()
			active := fmt.Sprintf("active alerts: %d (%d critical)", s.ActiveAlerts, s.CriticalActive)
			if s.CriticalActive > 0 {
				active = st.critical.Render(active)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinVertical(lipgloss.Left,
				st.title.Render("Dashboard"),
				fmt.Sprintf("patients: %d", s.Patients),
				active,
				fmt.Sprintf("resolved alerts: %d", s.ResolvedAlerts),
				st.faint.Render(fmt.Sprintf("patients with remarks: %d", s.PatientsWithRemarks)),
			))
			return err
		},
	}
}
