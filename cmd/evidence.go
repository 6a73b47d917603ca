package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arden/fieldsync/internal/media"
	"github.com/arden/fieldsync/internal/models"
	"github.com/arden/fieldsync/internal/output"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/spf13/cobra"
)

var evidenceCmd = &cobra.Command{
	Use:     "evidence",
	Aliases: []string{"ev"},
	Short:   "Capture and manage field evidence",
	GroupID: "capture",
}

var evidenceAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Capture a photo, voice note, or document as evidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewFlag, _ := cmd.Flags().GetString("review")
		itemID, _ := cmd.Flags().GetString("item")

		reviewID, err := resolveReview(reviewFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			output.Error("read file: %v", err)
			return err
		}
		if int64(len(data)) > fsync.MaxEvidenceSize {
			output.Warning("file exceeds the 10 MB upload limit and will never sync")
		}

		mimeType, kind := media.Detect(data)

		ev := &models.FieldEvidence{
			ReviewID:        reviewID,
			ChecklistItemID: itemID,
			Type:            kind,
			MimeType:        mimeType,
			FileName:        filepath.Base(args[0]),
			Data:            data,
			GPS:             gpsFromFlags(cmd),
		}

		if kind == models.EvidencePhoto {
			if thumb, err := media.Thumbnail(data); err == nil {
				ev.Thumbnail = thumb
			}
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.CreateEvidence(ev); err != nil {
			output.Error("create evidence: %v", err)
			return err
		}

		output.Success("Captured %s (%s, %s)", ev.ID, ev.Type, output.FormatBytes(ev.FileSize))
		autoSyncAfterMutation()
		return nil
	},
}

var evidenceAnnotateCmd = &cobra.Command{
	Use:   "annotate <id> <file>",
	Short: "Replace evidence with an annotated version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			output.Error("read file: %v", err)
			return err
		}

		var thumb []byte
		if _, kind := media.Detect(data); kind == models.EvidencePhoto {
			thumb, _ = media.Thumbnail(data)
		}

		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.AnnotateEvidence(args[0], data, thumb); err != nil {
			output.Error("annotate evidence: %v", err)
			return err
		}

		output.Success("Annotated %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var evidenceDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete evidence locally (and remotely once synced)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.DeleteEvidence(args[0]); err != nil {
			output.Error("delete evidence: %v", err)
			return err
		}

		output.Success("Deleted %s", args[0])
		autoSyncAfterMutation()
		return nil
	},
}

var evidenceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List evidence for the active review",
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

		records, err := database.ListEvidence(reviewID)
		if err != nil {
			output.Error("list evidence: %v", err)
			return err
		}

		if len(records) == 0 {
			fmt.Println("No evidence captured.")
			return nil
		}
		for i := range records {
			fmt.Println(output.FormatEvidence(&records[i]))
		}
		return nil
	},
}

// gpsFromFlags builds a GPS fix from --lat/--lon/--accuracy when provided.
func gpsFromFlags(cmd *cobra.Command) *models.GPSFix {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
		return nil
	}
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	acc, _ := cmd.Flags().GetFloat64("accuracy")
	return &models.GPSFix{Latitude: lat, Longitude: lon, Accuracy: acc}
}

func init() {
	evidenceAddCmd.Flags().String("review", "", "Review ID (defaults to active selection)")
	evidenceAddCmd.Flags().String("item", "", "Checklist item this evidence belongs to")
	evidenceAddCmd.Flags().Float64("lat", 0, "GPS latitude of the capture location")
	evidenceAddCmd.Flags().Float64("lon", 0, "GPS longitude of the capture location")
	evidenceAddCmd.Flags().Float64("accuracy", 0, "GPS accuracy in meters")
	evidenceListCmd.Flags().String("review", "", "Review ID (defaults to active selection)")

	evidenceCmd.AddCommand(evidenceAddCmd)
	evidenceCmd.AddCommand(evidenceAnnotateCmd)
	evidenceCmd.AddCommand(evidenceDeleteCmd)
	evidenceCmd.AddCommand(evidenceListCmd)
	rootCmd.AddCommand(evidenceCmd)
}
