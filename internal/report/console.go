// Package report renders evaluation results for people and for other tools.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

// WriteConsole prints one percentage line per candidate followed by the
// aggregate, in candidate order.
func WriteConsole(w io.Writer, result *scoring.EvaluationResult) error {
	for _, c := range result.Candidates {
		if _, err := fmt.Fprintf(w, "Score: %.2f%%\n", c.Score*100); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total Average Score: %.2f%%\n", result.Aggregate*100)
	return err
}

const maxBarWidth = 50

// PlotCandidateScores draws the candidate scores as a horizontal bar chart in
// ascending order.
func PlotCandidateScores(w io.Writer, result *scoring.EvaluationResult, title string) {
	if len(result.Candidates) == 0 {
		return
	}

	candidates := make([]scoring.CandidateScore, len(result.Candidates))
	copy(candidates, result.Candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})

	minScore := candidates[0].Score
	maxScore := candidates[len(candidates)-1].Score

	nameWidth := len("Candidate")
	for _, c := range candidates {
		nameWidth = max(nameWidth, len(c.Candidate))
	}

	fmt.Fprintf(w, "\n%s (Terminal Plot - Ascending Order):\n", title)
	fmt.Fprintf(w, "%-*s | Score    | Bar Chart\n", nameWidth, "Candidate")
	fmt.Fprintln(w, strings.Repeat("-", nameWidth+1)+"|----------|"+strings.Repeat("-", maxBarWidth))

	for _, c := range candidates {
		var barWidth int
		if maxScore != minScore {
			barWidth = int((c.Score - minScore) / (maxScore - minScore) * float64(maxBarWidth))
		} else {
			barWidth = maxBarWidth / 2
		}

		bar := strings.Repeat("█", barWidth)
		if barWidth == 0 {
			bar = "▏"
		}

		fmt.Fprintf(w, "%-*s | %.6f | %s (%.2f%%)\n", nameWidth, c.Candidate, c.Score, bar, c.Score*100)
	}

	fmt.Fprintf(w, "\nScale: Min=%.6f, Max=%.6f, Mean=%.6f\n", minScore, maxScore, result.Aggregate)
}
