package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/preflight"
	"github.com/arden/fieldsync/internal/storage"
	"github.com/spf13/cobra"
)

var preflightCmd = &cobra.Command{
	Use:     "preflight",
	Short:   "Check readiness before going on site",
	Long:    `Runs the pre-departure checks: local store health, capture permissions, cached review data, and free disk space.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")

		// Preflight tolerates a missing selection; the cache check
		// degrades to a warning.
		reviewID, _ := resolveReview(reviewFlag)

		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		client, err := newClient()
		if err != nil {
			// Offline preflight still runs; cache population just
			// cannot happen.
			client = nil
		}

		logger := cliLogger()
		runner := preflight.NewRunner(database, newCacheManager(client), storage.NewManager(database, logger), nil, logger)

		report := runner.Run(reviewID, func(c preflight.Check) {
			switch c.Result {
			case preflight.Pass:
				output.Success("  ✓ %-22s %s", c.Name, c.Detail)
			case preflight.Warning:
				output.Warning("  ! %-22s %s", c.Name, c.Detail)
			case preflight.Fail:
				output.Error("  ✗ %-22s %s", c.Name, c.Detail)
			}
		})

		fmt.Println()
		if report.Ready {
			output.Success("Ready for offline fieldwork.")
			return nil
		}
		output.Error("Not ready: fix the failed checks above before departing.")
		return fmt.Errorf("preflight failed")
	},
}

func init() {
	preflightCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	rootCmd.AddCommand(preflightCmd)
}
