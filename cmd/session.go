package cmd

import (
	"fmt"
	"os"

	"github.com/arden/fieldsync/internal/models"
	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"ses"},
	Short:   "Track on-site visit sessions",
	GroupID: "capture",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an on-site session for the active review",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if open, err := database.GetOpenSession(); err == nil && open != nil {
			output.Warning("session %s is still open (started %s)", open.ID, output.FormatTimeAgo(open.StartedAt))
			return fmt.Errorf("session already open")
		}

		reviewerID := ""
		if auth, err := syncconfig.LoadAuth(); err == nil {
			reviewerID = auth.ReviewerID
		}
		device, _ := os.Hostname()

		s := &models.OfflineSession{
			ReviewID:   reviewID,
			ReviewerID: reviewerID,
			Device:     device,
		}
		if err := database.StartSession(s); err != nil {
			output.Error("start session: %v", err)
			return err
		}

		output.Success("Started session %s", s.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end [id]",
	Short: "End the open on-site session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		var id string
		if len(args) > 0 {
			id = args[0]
		} else {
			open, err := database.GetOpenSession()
			if err != nil {
				output.Error("find open session: %v", err)
				return err
			}
			if open == nil {
				output.Error("no open session")
				return fmt.Errorf("no open session")
			}
			id = open.ID
		}

		if err := database.EndSession(id); err != nil {
			output.Error("end session: %v", err)
			return err
		}

		output.Success("Ended session %s", id)
		autoSyncAfterMutation()
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions for the active review",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		sessions, err := database.ListSessions(reviewID)
		if err != nil {
			output.Error("list sessions: %v", err)
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}
		for i := range sessions {
			fmt.Println(output.FormatSessionLine(&sessions[i]))
		}
		return nil
	},
}

func init() {
	sessionStartCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	sessionListCmd.Flags().String("review", "", "Review ID (defaults to active selection)")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionListCmd)
	rootCmd.AddCommand(sessionCmd)
}
