package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute stored face embeddings from registration photos",
	Long: `Recompute the face embedding of every employee from the stored
registration photo. Run this after upgrading the face model.

Employees without a stored photo are skipped. A new embedding that
matches another employee above the duplicate threshold is rejected like
a photo update would be. Failures are counted and leave the previous
embedding in place.

Examples:
  face-attendance reembed
  face-attendance reembed --concurrency 8 --json`,
	RunE: runReembed,
}

func init() {
	rootCmd.AddCommand(reembedCmd)

	reembedCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel workers")
	reembedCmd.Flags().Bool("json", false, "Output as JSON")
}

// ReembedResult is the JSON output of the reembed command
type ReembedResult struct {
	Success       bool   `json:"success"`
	Employees     int    `json:"employees"`
	Updated       int    `json:"updated"`
	Skipped       int    `json:"skipped"`
	Duplicates    int    `json:"duplicates"`
	Errors        int    `json:"errors"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"-"`
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")
	if concurrency < 1 {
		concurrency = 1
	}

	startTime := time.Now()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snapshot, err := a.store.GetAllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load employees: %w", err)
	}

	if len(snapshot) == 0 {
		if jsonOutput {
			return outputJSON(ReembedResult{Success: true, DurationMs: time.Since(startTime).Milliseconds()})
		}
		fmt.Println("No registered employees found.")
		return nil
	}

	if !jsonOutput {
		fmt.Printf("Found %d employees to re-embed\n\n", len(snapshot))
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(snapshot),
			progressbar.OptionSetDescription("Re-embedding"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var updated, skipped, duplicates, errorCount int64
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, entry := range snapshot {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			ok, err := a.guard.Reembed(ctx, id)
			var dup *registration.DuplicateFaceError
			switch {
			case errors.As(err, &dup):
				atomic.AddInt64(&duplicates, 1)
				a.logger.WithFields(logrus.Fields{
					"employee_id": id,
					"matches":     dup.EmployeeID,
					"score":       dup.Score,
				}).Warn("Re-embedding rejected, face matches another employee")
			case err != nil:
				atomic.AddInt64(&errorCount, 1)
				a.logger.WithError(err).WithField("employee_id", id).Warn("Re-embedding failed")
			case ok:
				atomic.AddInt64(&updated, 1)
			default:
				atomic.AddInt64(&skipped, 1)
			}

			if bar != nil {
				bar.Add(1)
			}
		}(entry.EmployeeID)
	}

	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	// Concurrent workers each check against the snapshot they read, so look
	// for pairs that slipped through once everything is written.
	if pairs, err := a.index.Pairwise(ctx); err == nil {
		for _, p := range pairs {
			if p.Duplicate {
				duplicates++
				a.logger.WithFields(logrus.Fields{
					"employee_a": p.A.EmployeeID,
					"employee_b": p.B.EmployeeID,
					"score":      p.Score,
				}).Warn("Employees share a face after re-embedding")
			}
		}
	}

	duration := time.Since(startTime)
	result := ReembedResult{
		Success:       errorCount == 0 && duplicates == 0,
		Employees:     len(snapshot),
		Updated:       int(updated),
		Skipped:       int(skipped),
		Duplicates:    int(duplicates),
		Errors:        int(errorCount),
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nRe-embedding complete!")
	fmt.Printf("  Employees: %d\n", result.Employees)
	fmt.Printf("  Updated:   %d\n", result.Updated)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:   %d (no stored photo)\n", result.Skipped)
	}
	if result.Duplicates > 0 {
		fmt.Printf("  Duplicate: %d (see warnings)\n", result.Duplicates)
	}
	if result.Errors > 0 {
		fmt.Printf("  Errors:    %d\n", result.Errors)
	}
	fmt.Printf("  Duration:  %s\n", result.DurationHuman)
	return nil
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
