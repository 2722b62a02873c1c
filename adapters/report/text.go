package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

// TextConfig controls the human-readable report
type TextConfig struct {
	MaxComparisons int  // post-hoc rows shown per table; 0 shows all
	ShowSummary    bool // leading run summary line
}

// DefaultTextConfig shows every comparison plus the summary line
func DefaultTextConfig() TextConfig {
	return TextConfig{ShowSummary: true}
}

// TextRenderer prints one block per hypothesis followed by interpretation
// guidelines
type TextRenderer struct {
	config TextConfig
}

// NewTextRenderer creates a text renderer
func NewTextRenderer(config TextConfig) *TextRenderer {
	return &TextRenderer{config: config}
}

func (r *TextRenderer) Render(w io.Writer, report *stats.Report) error {
	var b strings.Builder
	alpha := formatAlpha(report.Alpha)

	if r.config.ShowSummary {
		s := report.Summarize()
		fmt.Fprintf(&b, "Run %s | alpha = %s | rows = %d | claim rows = %d\n", report.RunID, alpha, report.Rows, report.ClaimRows)
		if !report.GeneratedAt.IsZero() {
			fmt.Fprintf(&b, "Generated %s\n", report.GeneratedAt.Time().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "Tests: %d executed (%d significant), %d skipped, %d failed\n\n", s.Executed, s.Significant, s.Skipped, s.Failed)
	}

	for i, h := range report.Hypotheses {
		fmt.Fprintf(&b, "--- Hypothesis %s: %s ---\n", strings.TrimPrefix(h.ID, "H"), h.Title)
		for _, t := range h.Tests {
			r.writeTest(&b, t, alpha)
		}
		if i < len(report.Hypotheses)-1 {
			b.WriteString("\n" + strings.Repeat("-", 60) + "\n\n")
		}
	}
	b.WriteString("\n" + strings.Repeat("=", 80) + "\n\n")
	writeGuidelines(&b, alpha)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, "write text report")
	}
	return nil
}

func (r *TextRenderer) writeTest(b *strings.Builder, t stats.TestResult, alpha string) {
	switch t.Status {
	case stats.StatusSkipped:
		fmt.Fprintf(b, "  %s\n", t.SkipReason)
		return
	case stats.StatusFailed:
		fmt.Fprintf(b, "  %s (%s) could not be computed: %s\n", t.Name, t.Kind.Label(), t.Error)
		return
	}

	fmt.Fprintf(b, "%s (%s): p-value = %.4f\n", t.Name, t.Kind.Label(), t.PValue)
	if t.Significant {
		fmt.Fprintf(b, "  Reject H₀: There is a significant difference in %s (p < %s).\n", t.Subject, alpha)
	} else {
		fmt.Fprintf(b, "  Fail to reject H₀: No significant difference in %s (p >= %s).\n", t.Subject, alpha)
	}

	if t.PostHoc != nil {
		fmt.Fprintf(b, "  Tukey's HSD Post-hoc Test for %s:\n", t.Name)
		b.WriteString(r.postHocTable(t.PostHoc))
		b.WriteString("\n")
	} else if t.Error != "" {
		fmt.Fprintf(b, "  %s\n", t.Error)
	}
}

func (r *TextRenderer) postHocTable(ph *stats.PostHocTable) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(fmt.Sprintf("Multiple Comparison of Means - %s, FWER=%s", ph.Method, formatAlpha(ph.Alpha)))
	tbl.AppendHeader(table.Row{"group1", "group2", "meandiff", "p-adj", "lower", "upper", "reject"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	rows := ph.Comparisons
	if r.config.MaxComparisons > 0 && len(rows) > r.config.MaxComparisons {
		rows = rows[:r.config.MaxComparisons]
	}
	for _, c := range rows {
		tbl.AppendRow(table.Row{
			c.Group1,
			c.Group2,
			fmt.Sprintf("%.4f", c.MeanDiff),
			fmt.Sprintf("%.4f", c.PAdj),
			fmt.Sprintf("%.4f", c.Lower),
			fmt.Sprintf("%.4f", c.Upper),
			strconv.FormatBool(c.Reject),
		})
	}
	if len(rows) < len(ph.Comparisons) {
		tbl.AppendFooter(table.Row{fmt.Sprintf("showing %d of %d comparisons", len(rows), len(ph.Comparisons))})
	}
	return tbl.Render()
}

func writeGuidelines(b *strings.Builder, alpha string) {
	b.WriteString("--- Interpretation Guidelines ---\n")
	fmt.Fprintf(b, "For each test, compare the 'p-value' to the 'Significance level (alpha)' (%s).\n", alpha)
	fmt.Fprintf(b, "If p-value < %s: Reject the Null Hypothesis (H₀). This means there's statistically significant evidence of a difference.\n", alpha)
	fmt.Fprintf(b, "If p-value >= %s: Fail to Reject the Null Hypothesis (H₀). This means there's no statistically significant evidence of a difference.\n", alpha)
	b.WriteString("\nFor ANOVA tests, if the p-value is significant, a Tukey's HSD Post-hoc test is performed to identify which specific groups differ.\n")
}

func formatAlpha(alpha float64) string {
	return strconv.FormatFloat(alpha, 'f', -1, 64)
}
