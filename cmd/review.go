package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/review"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	Short:   "Select and inspect assigned reviews",
	GroupID: "system",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviews assigned to you on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		reviews, err := client.ListReviews()
		if err != nil {
			output.Error("list reviews: %v", err)
			return err
		}

		if len(reviews) == 0 {
			fmt.Println("No reviews assigned.")
			return nil
		}

		for _, r := range reviews {
			fmt.Printf("  %-14s %-30s %s\n", r.ID, r.Title, r.SiteName)
		}
		return nil
	},
}

var reviewSelectCmd = &cobra.Command{
	Use:   "select <review-id>",
	Short: "Make a review the active one for this workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		sel, err := review.Select(getBaseDir(), args[0], title)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Selected review %s", sel.ReviewID)
		return nil
	},
}

var reviewCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active review",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := review.Get(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if sel.Title != "" {
			fmt.Printf("%s  %s  (selected %s)\n", sel.ReviewID, sel.Title, output.FormatTimeAgo(sel.SelectedAt))
		} else {
			fmt.Printf("%s  (selected %s)\n", sel.ReviewID, output.FormatTimeAgo(sel.SelectedAt))
		}
		return nil
	},
}

var reviewClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the active review selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := review.Clear(getBaseDir()); err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println("Review selection cleared.")
		return nil
	},
}

func init() {
	reviewSelectCmd.Flags().String("title", "", "Review title to record with the selection")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewSelectCmd)
	reviewCmd.AddCommand(reviewCurrentCmd)
	reviewCmd.AddCommand(reviewClearCmd)
	rootCmd.AddCommand(reviewCmd)
}
