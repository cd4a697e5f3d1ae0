package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Performance Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Source: %s | Reference currency: %s\n\n", r.Source, r.RefCurrency))

	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period | %s to %s |\n", formatDay(s.Start), formatDay(s.End)))
	sb.WriteString(fmt.Sprintf("| NAV start | %.2f |\n", s.NAVStart))
	sb.WriteString(fmt.Sprintf("| NAV end | %.2f |\n", s.NAVEnd))
	sb.WriteString(fmt.Sprintf("| Annualized return | %.2f%% |\n", s.AnnualizedReturn*100))
	sb.WriteString(fmt.Sprintf("| Annualized volatility | %.2f%% |\n", s.AnnualizedVolatility*100))
	sb.WriteString(fmt.Sprintf("| Downside volatility | %.2f%% |\n", s.DownsideVolatility*100))
	sb.WriteString(fmt.Sprintf("| Sharpe ratio | %.3f |\n", s.Sharpe))
	sb.WriteString(fmt.Sprintf("| Sortino ratio | %.3f |\n", s.Sortino))
	sb.WriteString(fmt.Sprintf("| Max drawdown | %.2f (%.2f%%) |\n", s.MaxDrawdown.Value, s.MaxDrawdown.Pct*100))
	sb.WriteString(fmt.Sprintf("| Drawdown peak | %s |\n", formatDay(s.MaxDrawdown.PeakDay)))
	sb.WriteString(fmt.Sprintf("| Drawdown trough | %s |\n", formatDay(s.MaxDrawdown.TroughDay)))
	sb.WriteString(fmt.Sprintf("| Annualized turnover | %.3f |\n", s.AnnualizedTurnover))
	sb.WriteString(fmt.Sprintf("| Transaction cost ratio | %.4f |\n", s.TransactionCostRatio))
	sb.WriteString("\n")

	if len(s.Errors) > 0 {
		sb.WriteString("## Incomplete Statistics\n\n")
		sb.WriteString("The following statistics could not be computed and are shown as zero:\n\n")
		for _, e := range s.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	if len(s.Warnings) > 0 {
		sb.WriteString("## Valuation Warnings\n\n")
		for _, w := range s.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	if len(r.BalanceWarnings) > 0 {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("| Asset | Day | Balance |\n")
		sb.WriteString("|-------|-----|--------|\n")
		for _, w := range r.BalanceWarnings {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.8f |\n", w.Asset, formatDay(w.Day), w.Quantity))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatDay(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
