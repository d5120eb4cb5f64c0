package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new employee from a face photo",
	Long: `Register a new employee with a face photo.

The photo must show exactly one recognizable face that does not already
belong to another employee. Nothing is stored if any check fails.

Examples:
  face-attendance register --id E001 --name "Jan Novák" --image jan.jpg
  face-attendance register --id E002 --name "Eva" --email eva@example.com \
    --department QA --salary 42000 --image eva.png`,
	RunE: runRegister,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a face photo can be used for registration",
	Long: `Run the face checks of a registration without storing anything.

Examples:
  face-attendance validate --image candidate.jpg`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(validateCmd)

	registerCmd.Flags().String("id", "", "Employee ID (required)")
	registerCmd.Flags().String("name", "", "Employee name (required)")
	registerCmd.Flags().String("email", "", "Email for attendance notifications")
	registerCmd.Flags().String("mobile", "", "Mobile number")
	registerCmd.Flags().String("address", "", "Address")
	registerCmd.Flags().String("gender", "", "Gender")
	registerCmd.Flags().String("department", "", "Department")
	registerCmd.Flags().String("position", "", "Position")
	registerCmd.Flags().Float64("salary", 0, "Monthly salary")
	registerCmd.Flags().Float64("hours", 0, "Working hours per day")
	registerCmd.Flags().String("type", "", "Employee type (e.g. full-time)")
	registerCmd.Flags().String("joined", "", "Joining date (YYYY-MM-DD)")
	registerCmd.Flags().String("image", "", "Path to the face photo (required)")

	validateCmd.Flags().String("image", "", "Path to the face photo (required)")
}

// printRejection explains why a face or registration was refused.
func printRejection(err error) {
	var dup *registration.DuplicateFaceError
	if errors.As(err, &dup) {
		fmt.Printf("Rejected: face already registered as %s (%s), similarity %.4f\n", dup.Name, dup.EmployeeID, dup.Score)
		return
	}
	fmt.Printf("Rejected: %v\n", err)
}

func runRegister(cmd *cobra.Command, args []string) error {
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

	emp := &database.Employee{
		ID:                 mustGetString(cmd, "id"),
		Name:               mustGetString(cmd, "name"),
		Email:              mustGetString(cmd, "email"),
		MobileNo:           mustGetString(cmd, "mobile"),
		Address:            mustGetString(cmd, "address"),
		Gender:             mustGetString(cmd, "gender"),
		Department:         mustGetString(cmd, "department"),
		Position:           mustGetString(cmd, "position"),
		Salary:             optionalFloat64(cmd, "salary"),
		WorkingHoursPerDay: optionalFloat64(cmd, "hours"),
		EmployeeType:       mustGetString(cmd, "type"),
		JoiningDate:        mustGetString(cmd, "joined"),
	}

	id, err := a.guard.Register(ctx, emp, img)
	if err != nil {
		printRejection(err)
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("Registered %s (%s)\n", emp.Name, id)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	if err := a.guard.Validate(ctx, img); err != nil {
		printRejection(err)
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Println("Face is unique and valid for registration.")
	return nil
}
