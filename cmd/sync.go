package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/arden/fieldsync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Push queued local changes to the review server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")

		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		if statusOnly {
			engine := fsync.NewEngine(database, fsync.Handlers{}, cliLogger())
			return printSyncStatus(engine)
		}

		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in (run: fieldsync auth login)")
			return fmt.Errorf("not authenticated")
		}

		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		engine := fsync.NewEngine(database, fsync.NewHandlers(database, client), cliLogger())
		result, err := engine.ProcessQueue()
		if err != nil {
			output.Error("sync: %v", err)
			return err
		}

		if result.Processed() == 0 {
			fmt.Println("Nothing to sync.")
			return nil
		}

		output.Success("Synced %d", result.Synced)
		if result.Retried > 0 {
			output.Warning("%d deferred for retry", result.Retried)
		}
		if result.Failed > 0 {
			output.Error("%d failed permanently (see: fieldsync sync --status)", result.Failed)
		}
		if result.Conflicts > 0 {
			output.Warning("%d conflicts parked (see: fieldsync sync conflicts)", result.Conflicts)
		}
		return nil
	},
}

var syncRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Requeue failed entries and sync again",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in (run: fieldsync auth login)")
			return fmt.Errorf("not authenticated")
		}

		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		engine := fsync.NewEngine(database, fsync.NewHandlers(database, client), cliLogger())
		n, err := engine.RetryFailed()
		if err != nil {
			output.Error("retry: %v", err)
			return err
		}
		if n == 0 {
			fmt.Println("No failed entries to retry.")
			return nil
		}
		fmt.Printf("Requeued %d failed entries.\n", n)

		result, err := engine.ProcessQueue()
		if err != nil {
			output.Error("sync: %v", err)
			return err
		}
		output.Success("Synced %d of %d", result.Synced, result.Processed())
		return nil
	},
}

var syncConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show queue entries parked on a server conflict",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		entries, err := database.ListQueueEntries()
		if err != nil {
			output.Error("list queue: %v", err)
			return err
		}

		found := 0
		for i := range entries {
			if !entries[i].Conflicted {
				continue
			}
			if found == 0 {
				fmt.Println("Conflicted entries (need resolution on the server):")
			}
			fmt.Println("  " + output.Truncate(output.FormatQueueEntry(&entries[i]), output.TerminalWidth()-2))
			found++
		}
		if found == 0 {
			fmt.Println("No sync conflicts.")
		}
		return nil
	},
}

func printSyncStatus(engine *fsync.Engine) error {
	status, err := engine.GetStatus()
	if err != nil {
		output.Error("sync status: %v", err)
		return err
	}

	fmt.Printf("Pending:   %d\n", status.Pending)
	fmt.Printf("Failed:    %d\n", status.Failed)
	fmt.Printf("Conflicts: %d\n", status.Conflicts)
	if status.LastSyncAt != nil {
		fmt.Printf("Last sync: %s\n", output.FormatTimeAgo(*status.LastSyncAt))
	} else {
		fmt.Println("Last sync: never")
	}
	if status.LastError != "" {
		fmt.Printf("Last error: %s\n", status.LastError)
	}
	return nil
}

func init() {
	syncCmd.Flags().Bool("status", false, "Show queue status without syncing")

	syncCmd.AddCommand(syncRetryCmd)
	syncCmd.AddCommand(syncConflictsCmd)
	rootCmd.AddCommand(syncCmd)
}
