package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arden/fieldsync/internal/models"
	"github.com/arden/fieldsync/internal/output"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var errFindingTitleRequired = errors.New("title is required")

var findingCmd = &cobra.Command{
	Use:     "finding",
	Aliases: []string{"fnd"},
	Short:   "Draft findings while on site",
	GroupID: "capture",
}

var findingAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Draft a new finding (interactive form without arguments)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		f := &models.DraftFinding{ReviewID: reviewID, Severity: models.SeverityMinor}
		if len(args) > 0 {
			f.Title = args[0]
			if s, _ := cmd.Flags().GetString("severity"); s != "" {
				f.Severity = models.Severity(s)
				if !isValidSeverity(f.Severity) {
					output.Error("invalid severity: %s (valid: observation, minor, major, critical)", s)
					return fmt.Errorf("invalid severity: %s", s)
				}
			}
			f.Description, _ = cmd.Flags().GetString("description")
			f.AreaCode, _ = cmd.Flags().GetString("area")
			f.QuestionID, _ = cmd.Flags().GetString("question")
			if ev, _ := cmd.Flags().GetStringSlice("evidence"); len(ev) > 0 {
				f.EvidenceIDs = ev
			}
		} else {
			if err := runFindingForm(f); err != nil {
				return err
			}
		}
		f.GPS = gpsFromFlags(cmd)

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.CreateFinding(f); err != nil {
			output.Error("create finding: %v", err)
			return err
		}

		output.Success("Drafted %s", f.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var findingUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Revise a draft finding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		f, err := database.GetFinding(args[0])
		if err != nil {
			output.Error("get finding: %v", err)
			return err
		}

		if cmd.Flags().Changed("title") {
			f.Title, _ = cmd.Flags().GetString("title")
		}
		if cmd.Flags().Changed("description") {
			f.Description, _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("severity") {
			s, _ := cmd.Flags().GetString("severity")
			f.Severity = models.Severity(s)
			if !isValidSeverity(f.Severity) {
				output.Error("invalid severity: %s (valid: observation, minor, major, critical)", s)
				return fmt.Errorf("invalid severity: %s", s)
			}
		}
		if cmd.Flags().Changed("evidence") {
			f.EvidenceIDs, _ = cmd.Flags().GetStringSlice("evidence")
		}

		if err := database.UpdateFinding(f); err != nil {
			output.Error("update finding: %v", err)
			return err
		}

		output.Success("Updated %s", f.ID)
		autoSyncAfterMutation()
		return nil
	},
}

var findingDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Discard a draft finding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.DiscardFinding(args[0]); err != nil {
			output.Error("discard finding: %v", err)
			return err
		}

		output.Success("Discarded %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var findingListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List draft findings for the active review",
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

		findings, err := database.ListFindings(reviewID)
		if err != nil {
			output.Error("list findings: %v", err)
			return err
		}

		if len(findings) == 0 {
			fmt.Println("No draft findings.")
			return nil
		}
		for i := range findings {
			fmt.Println(output.FormatFinding(&findings[i]))
		}
		return nil
	},
}

// runFindingForm collects finding fields interactively.
func runFindingForm(f *models.DraftFinding) error {
	severityOptions := []huh.Option[string]{
		huh.NewOption("Observation", string(models.SeverityObservation)),
		huh.NewOption("Minor", string(models.SeverityMinor)),
		huh.NewOption("Major", string(models.SeverityMajor)),
		huh.NewOption("Critical", string(models.SeverityCritical)),
	}

	severity := string(f.Severity)
	var evidenceIDs string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&f.Title).
				Placeholder("Finding title...").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errFindingTitleRequired
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Severity").
				Options(severityOptions...).
				Value(&severity),
			huh.NewText().
				Title("Description").
				Value(&f.Description).
				Placeholder("What was observed...").
				Lines(3),
			huh.NewInput().
				Title("Area Code").
				Value(&f.AreaCode).
				Placeholder("e.g. WH-3"),
			huh.NewInput().
				Title("Evidence IDs").
				Value(&evidenceIDs).
				Placeholder("id1, id2, ..."),
		).Title("New Finding"),
	)

	if err := form.Run(); err != nil {
		return err
	}

	f.Severity = models.Severity(severity)
	for _, id := range strings.Split(evidenceIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			f.EvidenceIDs = append(f.EvidenceIDs, id)
		}
	}
	return nil
}

func isValidSeverity(s models.Severity) bool {
	switch s {
	case models.SeverityObservation, models.SeverityMinor, models.SeverityMajor, models.SeverityCritical:
		return true
	}
	return false
}

func init() {
	findingAddCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	findingAddCmd.Flags().String("severity", "", "Severity (observation, minor, major, critical)")
	findingAddCmd.Flags().String("description", "", "Finding description")
	findingAddCmd.Flags().String("area", "", "Area code where the issue was found")
	findingAddCmd.Flags().String("question", "", "Questionnaire question this finding answers")
	findingAddCmd.Flags().StringSlice("evidence", nil, "Evidence IDs supporting the finding")
	findingAddCmd.Flags().Float64("lat", 0, "GPS latitude")
	findingAddCmd.Flags().Float64("lon", 0, "GPS longitude")
	findingAddCmd.Flags().Float64("accuracy", 0, "GPS accuracy in meters")

	findingUpdateCmd.Flags().String("title", "", "New title")
	findingUpdateCmd.Flags().String("description", "", "New description")
	findingUpdateCmd.Flags().String("severity", "", "New severity")
	findingUpdateCmd.Flags().StringSlice("evidence", nil, "Replacement evidence ID list")

	findingListCmd.Flags().String("review", "", "Review ID (defaults to active selection)")

	findingCmd.AddCommand(findingAddCmd)
	findingCmd.AddCommand(findingUpdateCmd)
	findingCmd.AddCommand(findingDiscardCmd)
	findingCmd.AddCommand(findingListCmd)
	rootCmd.AddCommand(findingCmd)
}
