package main

import (
	"fmt"
	"strings"

	"dmtest/pkg/negative"
	"dmtest/pkg/scenario"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	okColor      = lipgloss.Color("#42c767")
	pendingColor = lipgloss.Color("#FFB86C")
	failColor    = lipgloss.Color("#ff6b6b")
	borderColor  = lipgloss.Color("#7571f9")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			MarginTop(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().
					Foreground(lipgloss.Color("#ffffff")).
					Bold(true).
					Padding(0, 1)
			default:
				return lipgloss.NewStyle().
					Padding(0, 1)
			}
		}).
		Headers(headers...)
}

func badge(text string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}

func stepBadge(s scenario.StepStatus) string {
	switch s {
	case scenario.StepPassed:
		return badge("PASS", okColor)
	case scenario.StepPending:
		return badge("PENDING", pendingColor)
	default:
		return badge("FAIL", failColor)
	}
}

func verdictBadge(s negative.Status) string {
	switch {
	case s == negative.StatusPending:
		return badge("PENDING", pendingColor)
	case s.OK():
		return badge("PASS", okColor)
	default:
		return badge("FAIL", failColor)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func renderResults(results []*scenario.Result) string {
	var b strings.Builder
	for _, r := range results {
		status := badge("PASSED", okColor)
		if !r.OK() {
			status = badge("FAILED", failColor)
		}
		b.WriteString(titleStyle.Render(fmt.Sprintf("Scenario %s", r.Scenario)) + "  " + status + "\n")

		if len(r.Verdicts) > 0 {
			t := newTable("CASE", "CONDITION", "RESULT", "REASON")
			for _, v := range r.Verdicts {
				t.Row(v.CaseID, v.Condition, verdictBadge(v.Status), truncate(v.Reason, 60))
			}
			b.WriteString(t.Render() + "\n")
		}
		if len(r.Steps) > 0 {
			t := newTable("STEP", "RESULT", "REASON")
			for _, s := range r.Steps {
				t.Row(s.Name, stepBadge(s.Status), truncate(s.Reason, 60))
			}
			b.WriteString(t.Render() + "\n")
		}
		if r.Err != nil {
			b.WriteString(mutedStyle.Render(r.Err.Error()) + "\n")
		}
	}
	return b.String()
}

func renderCases(cases []negative.Case) string {
	t := newTable("CASE", "CONDITION", "EXPECT", "STATUS")
	for _, c := range cases {
		status := badge("ACTIVE", okColor)
		if c.IsPending() {
			status = badge("PENDING", pendingColor) + " " + mutedStyle.Render(c.Pending)
		}
		t.Row(c.ID, c.Condition, c.Expect.String(), status)
	}
	return t.Render()
}

func labelStyle(s string) string {
	return mutedStyle.Width(12).Render(s)
}
