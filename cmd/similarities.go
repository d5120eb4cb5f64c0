package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var similaritiesCmd = &cobra.Command{
	Use:   "similarities",
	Short: "List face similarities between registered employees",
	Long: `Compare the face embeddings of every pair of registered employees.

Pairs above the duplicate threshold would have been rejected at
registration and are likely to be confused during recognition.

Examples:
  face-attendance similarities
  face-attendance similarities --top 10
  face-attendance similarities --neighbors 3
  face-attendance similarities --json`,
	RunE: runSimilarities,
}

func init() {
	rootCmd.AddCommand(similaritiesCmd)

	similaritiesCmd.Flags().Int("top", 20, "Show only the N most similar pairs (0 = all)")
	similaritiesCmd.Flags().Int("neighbors", 0, "List the N nearest faces of every employee instead of all pairs")
	similaritiesCmd.Flags().Bool("json", false, "Output as JSON")
}

// SimilarityOutput is one pair in the JSON output
type SimilarityOutput struct {
	EmployeeA string  `json:"employee_a"`
	NameA     string  `json:"name_a"`
	EmployeeB string  `json:"employee_b"`
	NameB     string  `json:"name_b"`
	Score     float64 `json:"score"`
	Duplicate bool    `json:"duplicate"`
}

// NeighborOutput is one employee in the --neighbors JSON output
type NeighborOutput struct {
	EmployeeID string             `json:"employee_id"`
	Name       string             `json:"name"`
	Neighbors  []SimilarityOutput `json:"neighbors"`
}

func printNeighbors(ctx context.Context, a *app, k int, jsonOutput bool) error {
	lists, err := a.index.Neighbors(ctx, k)
	if err != nil {
		return fmt.Errorf("computing neighbors: %w", err)
	}
	thresholds := a.index.Thresholds()

	if jsonOutput {
		out := make([]NeighborOutput, 0, len(lists))
		for _, l := range lists {
			item := NeighborOutput{EmployeeID: l.Employee.EmployeeID, Name: l.Employee.Name}
			for _, n := range l.Neighbors {
				item.Neighbors = append(item.Neighbors, SimilarityOutput{
					EmployeeA: l.Employee.EmployeeID,
					NameA:     l.Employee.Name,
					EmployeeB: n.EmployeeID,
					NameB:     n.Name,
					Score:     n.Score,
					Duplicate: thresholds.Accepts(facematch.DuplicateReject, n.Score),
				})
			}
			out = append(out, item)
		}
		return outputJSON(out)
	}

	for _, l := range lists {
		fmt.Printf("%s (%s)\n", l.Employee.Name, l.Employee.EmployeeID)
		for _, n := range l.Neighbors {
			marker := ""
			if thresholds.Accepts(facematch.DuplicateReject, n.Score) {
				marker = "  DUPLICATE"
			}
			fmt.Printf("  %-8.4f  %s (%s)%s\n", n.Score, n.Name, n.EmployeeID, marker)
		}
	}
	return nil
}

func runSimilarities(cmd *cobra.Command, args []string) error {
	top := mustGetInt(cmd, "top")
	neighbors := mustGetInt(cmd, "neighbors")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if neighbors > 0 {
		return printNeighbors(ctx, a, neighbors, jsonOutput)
	}

	pairs, err := a.index.Pairwise(ctx)
	if err != nil {
		return fmt.Errorf("computing similarities: %w", err)
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Score > pairs[j].Score
	})
	if top > 0 && len(pairs) > top {
		pairs = pairs[:top]
	}

	if jsonOutput {
		out := make([]SimilarityOutput, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, SimilarityOutput{
				EmployeeA: p.A.EmployeeID,
				NameA:     p.A.Name,
				EmployeeB: p.B.EmployeeID,
				NameB:     p.B.Name,
				Score:     p.Score,
				Duplicate: p.Duplicate,
			})
		}
		return outputJSON(out)
	}

	if len(pairs) == 0 {
		fmt.Println("Fewer than two employees have a face embedding.")
		return nil
	}

	thresholds := a.index.Thresholds()
	fmt.Printf("Identify threshold: %.2f, duplicate threshold: %.2f\n\n", thresholds.Identify, thresholds.Duplicate)
	fmt.Printf("%-8s  %-30s  %-30s\n", "SCORE", "EMPLOYEE A", "EMPLOYEE B")
	for _, p := range pairs {
		marker := ""
		if p.Duplicate {
			marker = "  DUPLICATE"
		}
		fmt.Printf("%-8.4f  %-30s  %-30s%s\n", p.Score,
			fmt.Sprintf("%s (%s)", p.A.Name, p.A.EmployeeID),
			fmt.Sprintf("%s (%s)", p.B.Name, p.B.EmployeeID),
			marker)
	}
	return nil
}
