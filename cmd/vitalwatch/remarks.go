package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vitalwatch/internal/handlers"
)

func newRemarksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remarks",
		Short: "Manage patient remarks",
	}
	cmd.AddCommand(newRemarksAddCmd(opts))
	return cmd
}

func newRemarksAddCmd(opts *rootOptions) *cobra.Command {
	var req handlers.RemarkRequest

	cmd := &cobra.Command{
		Use:   "add <patient-id> <content>",
		Short: "Append a remark to a patient's log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			req.Content = args[1]
			r, err := c.AddRemark(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd, r)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s remark %s to patient %s\n", r.Kind, r.ID, args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&req.Kind, "kind", "", "note, observation or urgent")
	return cmd
}
