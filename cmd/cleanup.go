package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/review"
	"github.com/arden/fieldsync/internal/storage"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Reclaim space from synced records and spent queue entries",
	GroupID: "storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetString("older-than")

		d, err := review.ParseDuration(olderThan)
		if err != nil {
			output.Error("invalid --older-than %q: %v", olderThan, err)
			return err
		}
		days := int(d.Hours() / 24)
		if days < 1 {
			output.Error("--older-than must be at least one day")
			return fmt.Errorf("invalid retention window")
		}

		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		logger := cliLogger()

		mgr := storage.NewManager(database, logger)
		removed, err := mgr.ClearOldSyncedData(days)
		if err != nil {
			output.Error("clear synced data: %v", err)
			return err
		}

		engine := fsync.NewEngine(database, fsync.Handlers{}, logger)
		collected, err := engine.ClearCompleted()
		if err != nil {
			output.Error("collect queue entries: %v", err)
			return err
		}

		output.Success("Removed %d synced records, collected %d spent queue entries", removed, collected)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().String("older-than", "30d", "Remove synced records older than this (e.g. 30d, 72h)")
	rootCmd.AddCommand(cleanupCmd)
}
