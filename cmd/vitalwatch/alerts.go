package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vitalwatch/internal/client"
	"vitalwatch/internal/models"
)

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and resolve alerts",
	}
	cmd.AddCommand(
		newAlertsListCmd(opts),
		newAlertsResolveCmd(opts),
	)
	return cmd
}

func newAlertsListCmd(opts *rootOptions) *cobra.Command {
	var (
		q        client.AlertQuery
		severity string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			q.Severity = models.Severity(severity)
			list, err := c.ListAlerts(cmd.Context(), q)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd, list)
			}

			st := newStyles()
			rows := make([][]string, 0, len(list))
			for _, a := range list {
				by := "-"
				if a.Resolution != nil {
					by = a.Resolution.ResolvedBy
				}
				rows = append(rows, []string{
					a.ID, a.PatientID, severityLabel(st, a.Severity), a.Message,
					a.OccurredAt.Format(time.RFC3339), by,
				})
			}
			return renderTable(cmd.OutOrStdout(), st, "No alerts.",
				[]string{"ID", "PATIENT", "SEVERITY", "MESSAGE", "OCCURRED", "RESOLVED BY"}, rows)
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Status, "status", "", "active, resolved or all")
	f.StringVar(&severity, "severity", "", "warning or critical")
	f.StringSliceVar(&q.PatientIDs, "patient", nil, "only alerts for these patient ids")
	f.IntVar(&q.Limit, "limit", 0, "maximum number of alerts")
	return cmd
}

func severityLabel(s styles, sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return s.critical.Render(string(sev))
	case models.SeverityWarning:
		return s.warning.Render(string(sev))
	}
	return string(sev)
}

func newAlertsResolveCmd(opts *rootOptions) *cobra.Command {
	var action, by string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an active alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			a, err := c.ResolveAlert(cmd.Context(), args[0], action, by)
			if errors.Is(err, models.ErrAlreadyResolved) && a.Resolution != nil {
				return fmt.Errorf("alert %s was already resolved by %s at %s",
					a.ID, a.Resolution.ResolvedBy, a.Resolution.ResolvedAt.Format(time.RFC3339))
			}
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd, a)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "resolved %s by %s\n", a.ID, a.Resolution.ResolvedBy)
			return err
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "action taken (required)")
	cmd.Flags().StringVar(&by, "by", "", "resolver name, defaults to --actor-name")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
