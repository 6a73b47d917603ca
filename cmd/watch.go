package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/connectivity"
	"github.com/arden/fieldsync/internal/output"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/arden/fieldsync/pkg/monitor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Live dashboard for the sync queue and connectivity",
	Long: `Launch a live-updating dashboard showing:
- Connectivity to the review server
- Queue counts, conflicts, and the last sync time
- Every queued entry with its retry state

Regaining connectivity triggers a drain automatically.

Key bindings:
  s     Sync now
  r     Requeue failed entries and sync
  f     Force refresh
  ↑/↓   Move through the queue
  q     Quit`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		reviewID, _ := resolveReview(reviewFlag)

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		logger := cliLogger()
		engine := fsync.NewEngine(database, fsync.NewHandlers(database, client), logger)

		conn := connectivity.NewMonitor(connectivity.Config{
			Prober: connectivity.ProberFunc(func(ctx context.Context) error {
				_, err := client.HealthCheck()
				return err
			}),
			Logger: logger,
		})
		defer conn.Destroy()

		model := monitor.NewModel(database, engine, conn, reviewID, interval, version)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running watch: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	watchCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
