// Package reporting renders a Scorecard as a styled terminal report,
// adapting the teacher's lipgloss table/heading approach to the
// engine's scoring output instead of an eval-run summary.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"

	"github.com/aks8m/piqi-eval/internal/help"
	"github.com/aks8m/piqi-eval/pkg/scorecard"
)

// PrintStyledReport renders sc to stdout: a header, the message-level
// score, a per-class table, and (if verbose) the informational results
// grouped by data class.
func PrintStyledReport(sc *scorecard.Scorecard, verbose bool) error {
	styles := help.DefaultStyles()

	var content strings.Builder
	content.WriteString(captureHeader(sc, styles))
	content.WriteString(captureMessageSummary(sc, styles))
	content.WriteString(captureClassTable(sc, styles))
	if verbose {
		content.WriteString(captureInformational(sc, styles))
	}

	margin := lipgloss.NewStyle().MarginTop(1).MarginBottom(1)
	fmt.Println(margin.Render(content.String()))
	return nil
}

func h1(styles help.Styles, text string) string {
	return styles.Heading.Render("# "+text) + "\n\n"
}

func h2(styles help.Styles, text string) string {
	return styles.Heading.Render("## "+text) + "\n\n"
}

func captureHeader(sc *scorecard.Scorecard, styles help.Styles) string {
	var b strings.Builder
	b.WriteString(h1(styles, "PIQI Scorecard"))
	b.WriteString(styles.Muted.Render(fmt.Sprintf("message %s  provider %s  source %s  rubric %s  date %s",
		sc.MessageID, sc.DataProviderID, sc.DataSourceID, sc.EvaluationRubric, sc.ProcessDate)))
	b.WriteString("\n\n")
	if sc.Partial {
		b.WriteString(styles.Error.Render("⚠ partial: evaluation was cancelled before completion") + "\n\n")
	}
	return b.String()
}

func captureMessageSummary(sc *scorecard.Scorecard, styles help.Styles) string {
	var b strings.Builder

	scoreStr := fmt.Sprintf("%d%% (%d/%d)", sc.MessageResults.Score, sc.MessageResults.Numerator, sc.MessageResults.Denominator)
	if sc.MessageResults.CriticalFailureCount > 0 {
		scoreStr = styles.Error.Render(scoreStr)
	} else if sc.MessageResults.Score >= 70 {
		scoreStr = styles.Success.Render(scoreStr)
	}
	b.WriteString(fmt.Sprintf("PIQI score: %s\n", scoreStr))
	b.WriteString(styles.Muted.Render(fmt.Sprintf("weighted: %d%% (%d/%d)   critical failures: %d",
		sc.MessageResults.WeightedScore, sc.MessageResults.WeightedNumerator, sc.MessageResults.WeightedDenominator,
		sc.MessageResults.CriticalFailureCount)))
	b.WriteString("\n\n")
	return b.String()
}

func captureClassTable(sc *scorecard.Scorecard, styles help.Styles) string {
	var b strings.Builder
	b.WriteString(h2(styles, "Data Classes"))

	rows := make([][]string, 0, len(sc.DataClassResults))
	for _, c := range sc.DataClassResults {
		scoreStr := fmt.Sprintf("%d%%", c.Score)
		switch {
		case c.CriticalFailureCount > 0:
			scoreStr = styles.Error.Render(scoreStr)
		case c.Score >= 70:
			scoreStr = styles.Success.Render(scoreStr)
		}
		rows = append(rows, []string{
			c.ClassName,
			fmt.Sprintf("%d", c.InstanceCount),
			fmt.Sprintf("%d/%d", c.Numerator, c.Denominator),
			scoreStr,
			fmt.Sprintf("%d", c.CriticalFailureCount),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Heading).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(styles.Heading.GetForeground()).Align(lipgloss.Left).Padding(0, 2)
			}
			return lipgloss.NewStyle().Align(lipgloss.Left).Padding(0, 2)
		}).
		Headers("Class", "Instances", "Passed/Processed", "Score", "Critical").
		Rows(rows...)

	b.WriteString(t.String() + "\n\n")
	return b.String()
}

func captureInformational(sc *scorecard.Scorecard, styles help.Styles) string {
	var b strings.Builder
	b.WriteString(h2(styles, "Informational Results"))

	if len(sc.InformationalResults) == 0 {
		b.WriteString(styles.Muted.Render("(none)") + "\n\n")
		return b.String()
	}

	for _, group := range sc.InformationalResults {
		b.WriteString(styles.Section.Render(group.ClassName) + "\n")
		for _, r := range group.Results {
			b.WriteString(fmt.Sprintf("  %-28s %-28s %3d/%3d  (%d instance(s))\n",
				r.EntityName, r.EvaluationName, r.Numerator, r.Denominator, r.InstanceCount))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteTrace marshals sc as indented JSON to path, for the run
// command's --trace-dir option.
func WriteTrace(path string, sc *scorecard.Scorecard) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scorecard trace: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
