package cmd

import (
	"fmt"

	"github.com/arden/fieldsync/internal/models"
	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var checklistCmd = &cobra.Command{
	Use:     "checklist",
	Aliases: []string{"chk"},
	Short:   "Work the review checklist",
	GroupID: "capture",
}

var checklistAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a checklist item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")
		phase, _ := cmd.Flags().GetString("phase")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !isValidPhase(phase) {
			output.Error("invalid phase: %s (valid: pre_visit, on_site, post_visit)", phase)
			return fmt.Errorf("invalid phase: %s", phase)
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		item := &models.ChecklistItem{
			ReviewID: reviewID,
			Phase:    models.Phase(phase),
			Title:    args[0],
		}
		if err := database.CreateChecklistItem(item); err != nil {
			output.Error("create checklist item: %v", err)
			return err
		}

		output.Success("Added %s", item.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var checklistCompleteCmd = &cobra.Command{
	Use:     "complete <id>",
	Aliases: []string{"done"},
	Short:   "Mark a checklist item complete",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		actor := ""
		if auth, err := syncconfig.LoadAuth(); err == nil {
			actor = auth.ReviewerID
		}

		if err := database.CompleteChecklistItem(args[0], actor); err != nil {
			output.Error("complete checklist item: %v", err)
			return err
		}

		output.Success("Completed %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var checklistNoteCmd = &cobra.Command{
	Use:   "note <id> <notes>",
	Short: "Attach notes to a checklist item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.AnnotateChecklistItem(args[0], args[1]); err != nil {
			output.Error("annotate checklist item: %v", err)
			return err
		}

		output.Success("Noted %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var checklistListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List checklist items for the active review",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")
		phase, _ := cmd.Flags().GetString("phase")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if phase != "" && !isValidPhase(phase) {
			output.Error("invalid phase: %s (valid: pre_visit, on_site, post_visit)", phase)
			return fmt.Errorf("invalid phase: %s", phase)
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		items, err := database.ListChecklistItems(reviewID, models.Phase(phase))
		if err != nil {
			output.Error("list checklist items: %v", err)
			return err
		}

		if len(items) == 0 {
			fmt.Println("No checklist items.")
			return nil
		}
		for i := range items {
			fmt.Println(output.FormatChecklistItem(&items[i]))
		}
		return nil
	},
}

func isValidPhase(p string) bool {
	switch models.Phase(p) {
	case models.PhasePreVisit, models.PhaseOnSite, models.PhasePostVisit:
		return true
	}
	return false
}

func init() {
	checklistAddCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	checklistAddCmd.Flags().String("phase", string(models.PhaseOnSite), "Checklist phase (pre_visit, on_site, post_visit)")
	checklistListCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	checklistListCmd.Flags().String("phase", "", "Filter by phase")

	checklistCmd.AddCommand(checklistAddCmd)
	checklistCmd.AddCommand(checklistCompleteCmd)
	checklistCmd.AddCommand(checklistNoteCmd)
	checklistCmd.AddCommand(checklistListCmd)
	rootCmd.AddCommand(checklistCmd)
}
