package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	Short:   "Manage cached review data for offline use",
	GroupID: "sync",
}

var cachePopulateCmd = &cobra.Command{
	Use:   "populate [review-id]",
	Short: "Download review data for offline use",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var explicit string
		if len(args) > 0 {
			explicit = args[0]
		}
		reviewID, err := resolveReview(explicit)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		mgr := newCacheManager(client)
		if err := mgr.CacheReviewForOffline(reviewID); err != nil {
			output.Error("cache review: %v", err)
			return err
		}

		output.Success("Cached review %s for offline use", reviewID)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <review-id>",
	Short: "Drop cached data for a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newCacheManager(nil)
		if err := mgr.ClearReviewCache(args[0]); err != nil {
			output.Error("clear cache: %v", err)
			return err
		}
		output.Success("Cleared cache for %s", args[0])
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reviews cached for offline use",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newCacheManager(nil)
		reviews, err := mgr.GetCachedReviews()
		if err != nil {
			output.Error("list cache: %v", err)
			return err
		}

		if len(reviews) == 0 {
			fmt.Println("No reviews cached.")
			return nil
		}
		for _, id := range reviews {
			marker := " "
			if mgr.IsCachedForOffline(id) {
				marker = "✓"
			}
			fmt.Printf("  %s %s\n", marker, id)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePopulateCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}
