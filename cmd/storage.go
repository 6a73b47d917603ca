package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/storage"
	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:     "storage",
	Short:   "Inspect local storage usage",
	GroupID: "storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		mgr := storage.NewManager(database, cliLogger())
		est := mgr.GetEstimate()

		fmt.Printf("Used:  %s\n", output.FormatBytes(est.UsedBytes))
		if est.QuotaBytes > 0 {
			fmt.Printf("Quota: %s\n", output.FormatBytes(est.QuotaBytes))
			fmt.Printf("Free:  %s\n", output.FormatBytes(est.FreeBytes))
		} else {
			fmt.Println("Quota: unknown")
		}
		if mgr.IsPersistent() {
			fmt.Println("Persistence: granted")
		} else {
			fmt.Println("Persistence: not requested")
		}
		return nil
	},
}

var storagePersistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Mark local data as persistent so it survives cleanup pressure",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		mgr := storage.NewManager(database, cliLogger())
		if mgr.RequestPersistent() {
			output.Success("Persistent storage granted.")
		} else {
			output.Warning("Persistent storage not granted.")
		}
		return nil
	},
}

func init() {
	storageCmd.AddCommand(storagePersistCmd)
	rootCmd.AddCommand(storageCmd)
}
