package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize a face photo and record attendance",
	Long: `Identify the employee in a photo and record their check-in.

The first recognition of the day records the check-in (On Time or Late
against the office on-time limit); later ones change nothing.

Examples:
  face-attendance recognize --image frame.jpg
  face-attendance recognize --image frame.jpg --json`,
	RunE: runRecognize,
}

var punchOutCmd = &cobra.Command{
	Use:   "punch-out",
	Short: "Record today's check-out of an employee",
	Long: `Record the check-out of an employee who checked in today.

Examples:
  face-attendance punch-out --id E001
  face-attendance punch-out --name "jan novak"`,
	RunE: runPunchOut,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(punchOutCmd)

	recognizeCmd.Flags().String("image", "", "Path to the camera frame (required)")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")

	punchOutCmd.Flags().String("id", "", "Employee ID")
	punchOutCmd.Flags().String("name", "", "Employee name, used when --id is empty")
}

// RecognizeOutput is the JSON output of the recognize command
type RecognizeOutput struct {
	RequestID  string  `json:"request_id"`
	Name       *string `json:"name"`
	EmployeeID string  `json:"employee_id,omitempty"`
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Score      float64 `json:"score,omitempty"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	img, err := readImage(mustGetString(cmd, "image"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.pipeline.Recognize(ctx, img)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(RecognizeOutput{
			RequestID:  result.RequestID,
			Name:       result.Name,
			EmployeeID: result.EmployeeID,
			Status:     string(result.Status),
			Message:    result.Message,
			Score:      result.Score,
		})
	}

	fmt.Printf("Status:  %s\n", result.Status)
	fmt.Printf("Message: %s\n", result.Message)
	if result.Name != nil {
		fmt.Printf("Employee: %s (%s), similarity %.4f\n", *result.Name, result.EmployeeID, result.Score)
	}
	return nil
}

func runPunchOut(cmd *cobra.Command, args []string) error {
	ref := attendance.EmployeeRef{
		ID:   mustGetString(cmd, "id"),
		Name: mustGetString(cmd, "name"),
	}
	if ref.String() == "" {
		return errors.New("--id or --name is required")
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	emp, err := a.attendance.PunchOut(ctx, ref, a.attendance.Now())
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("employee %q not found", ref.String())
	case errors.Is(err, attendance.ErrPunchOutRejected):
		return fmt.Errorf("failed to punch out %s: not checked in today or already punched out", emp.Name)
	case err != nil:
		return fmt.Errorf("punch-out failed: %w", err)
	}

	fmt.Printf("%s punched out successfully.\n", emp.Name)
	return nil
}
