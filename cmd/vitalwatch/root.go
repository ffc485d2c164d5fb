package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vitalwatch/internal/client"
	"vitalwatch/internal/models"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	serverURL string
	role      string
	actorID   string
	actorName string
	timeout   time.Duration
	asJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "vitalwatch",
		Short:         "Patient vitals simulator and alert dashboard",
		Long:          "vitalwatch simulates patient vital signs, raises threshold alerts and serves them over a JSON API. The client commands talk to a running server.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultURL := "http://localhost:8080"
	if v, ok := os.LookupEnv("VITALWATCH_URL"); ok && v != "" {
		defaultURL = v
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.serverURL, "server", defaultURL, "vitalwatch server URL")
	pf.StringVar(&opts.role, "role", "", "actor role: admin, doctor or caretaker")
	pf.StringVar(&opts.actorID, "actor-id", "", "actor id sent with requests")
	pf.StringVar(&opts.actorName, "actor-name", "", "actor name sent with requests")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	pf.BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	rootCmd.AddCommand(
		newServeCmd(),
		newVersionCmd(),
		newPatientsCmd(opts),
		newAlertsCmd(opts),
		newRemarksCmd(opts),
		newSummaryCmd(opts),
	)

	return rootCmd
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:    o.serverURL,
		Timeout:    o.timeout,
		RetryCount: 2,
		Actor: client.Actor{
			ID:   o.actorID,
			Name: o.actorName,
			Role: models.Role(o.role),
		},
	})
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
