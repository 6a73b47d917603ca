package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a fieldwork workspace",
	Long:    `Creates the local .fieldwork directory and SQLite database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".fieldwork")); err == nil {
			output.Warning(".fieldwork/ already exists")
			return nil
		}

		database, err := db.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer database.Close()

		fmt.Println("INITIALIZED .fieldwork/")
		fmt.Println("Next: fieldsync auth login, then fieldsync review select <id>")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
