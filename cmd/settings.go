package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change office hours",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current office hours",
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the office hours",
	Long: `Change the office hours. Times are formatted HH:MM:SS.
Check-ins after the on-time limit are recorded as Late.

Examples:
  face-attendance settings set --start 09:00:00 --end 18:00:00 --limit 09:30:00`,
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsGetCmd.Flags().Bool("json", false, "Output as JSON")

	settingsSetCmd.Flags().String("start", "", "Office start time (required)")
	settingsSetCmd.Flags().String("end", "", "Office end time (required)")
	settingsSetCmd.Flags().String("limit", "", "On-time limit for check-ins (required)")
}

// SettingsOutput is the JSON output of settings get
type SettingsOutput struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	OnTimeLimit string `json:"on_time_limit"`
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	settings, err := a.attendance.Settings(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(SettingsOutput{
			StartTime:   settings.StartTime,
			EndTime:     settings.EndTime,
			OnTimeLimit: settings.OnTimeLimit,
		})
	}

	fmt.Printf("Start:         %s\n", settings.StartTime)
	fmt.Printf("End:           %s\n", settings.EndTime)
	fmt.Printf("On-time limit: %s\n", settings.OnTimeLimit)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	settings := database.OfficeSettings{
		StartTime:   mustGetString(cmd, "start"),
		EndTime:     mustGetString(cmd, "end"),
		OnTimeLimit: mustGetString(cmd, "limit"),
	}
	if settings.StartTime == "" || settings.EndTime == "" || settings.OnTimeLimit == "" {
		return errors.New("--start, --end and --limit are required")
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.attendance.UpdateSettings(ctx, settings); err != nil {
		return fmt.Errorf("updating office settings: %w", err)
	}

	fmt.Println("Office settings updated successfully")
	return nil
}
