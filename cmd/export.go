package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/storage"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [review-id]",
	Short:   "Export a review's local data as JSON with inlined blobs",
	GroupID: "storage",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		var explicit string
		if len(args) > 0 {
			explicit = args[0]
		}
		reviewID, err := resolveReview(explicit)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		database, err := openStore()
		if err != nil {
			output.Error("open database: %v", err)
			return err
		}
		defer database.Close()

		mgr := storage.NewManager(database, cliLogger())
		export, err := mgr.ExportReview(reviewID)
		if err != nil {
			output.Error("export review: %v", err)
			return err
		}

		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal export: %w", err)
		}

		if outPath == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			output.Error("write export: %v", err)
			return err
		}
		output.Success("Exported %s to %s (%s)", reviewID, outPath, output.FormatBytes(int64(len(data))))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "Write export to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
