package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPatientsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Browse patients",
	}
	cmd.AddCommand(newPatientsListCmd(opts))
	return cmd
}

func newPatientsListCmd(opts *rootOptions) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the patients visible to the actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			patients, err := c.ListPatients(cmd.Context(), query)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd, patients)
			}

			rows := make([][]string, 0, len(patients))
			for _, p := range patients {
				v := p.CurrentVitals
				rows = append(rows, []string{
					p.ID, p.Name, strconv.Itoa(p.Age), p.Condition,
					fmt.Sprintf("%.0f", v.HeartRate),
					fmt.Sprintf("%.0f/%.0f", v.BloodPressureSystolic, v.BloodPressureDiastolic),
					fmt.Sprintf("%.0f", v.SpO2),
					fmt.Sprintf("%.1f", v.Temperature),
					strconv.Itoa(len(p.Remarks)),
				})
			}
			return renderTable(cmd.OutOrStdout(), newStyles(), "No patients.",
				[]string{"ID", "NAME", "AGE", "CONDITION", "HR", "BP", "SPO2", "TEMP", "REMARKS"}, rows)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by name or condition")
	return cmd
}
