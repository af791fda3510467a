package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Daily Report %s\n\n", r.Date))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Ticks | %d |\n", s.Ticks))
	sb.WriteString(fmt.Sprintf("| Decisions | %d |\n", s.Decisions))
	sb.WriteString(fmt.Sprintf("| Submitted | %d |\n", s.Submitted))
	sb.WriteString(fmt.Sprintf("| Duplicates | %d |\n", s.Duplicates))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", s.Rejected))
	sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", s.Skipped))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Failed))
	sb.WriteString(fmt.Sprintf("| Closes | %d |\n", s.Closes))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("| Realized P&L | %.2f |\n", s.RealizedPnL))
	sb.WriteString("\n")

	// Risk
	sb.WriteString("## Risk State\n\n")
	if r.Risk != nil {
		breaker := "ok"
		if r.Risk.BreakerTripped {
			breaker = "TRIPPED"
		}
		sb.WriteString("| Mode | Daily P&L | Trades | Wins | Losses | Breaker | Reference Equity |\n")
		sb.WriteString("|------|-----------|--------|------|--------|---------|------------------|\n")
		sb.WriteString(fmt.Sprintf("| %s | %.2f | %d | %d | %d | %s | %.2f |\n",
			r.Risk.Mode, r.Risk.DailyPnL, r.Risk.DailyTradeCount,
			r.Risk.ConsecutiveWins, r.Risk.ConsecutiveLosses, breaker, r.Risk.ReferenceEquity))
	} else {
		sb.WriteString("No risk state available.\n")
	}
	sb.WriteString("\n")

	// Outcomes
	sb.WriteString("## Decisions by Outcome\n\n")
	if len(r.Outcomes) > 0 {
		sb.WriteString("| Outcome | Code | Count |\n")
		sb.WriteString("|---------|------|-------|\n")
		for _, o := range r.Outcomes {
			code := string(o.Code)
			if code == "" {
				code = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", o.Outcome, code, o.Count))
		}
	} else {
		sb.WriteString("No decisions recorded.\n")
	}
	sb.WriteString("\n")

	// Strategies
	sb.WriteString("## Strategies\n\n")
	if len(r.Strategies) > 0 {
		sb.WriteString("| Strategy | Signals | Submitted | Closes | Realized P&L | Mean Confidence |\n")
		sb.WriteString("|----------|---------|-----------|--------|--------------|-----------------|\n")
		for _, st := range r.Strategies {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.2f | %.4f |\n",
				st.Strategy, st.Signals, st.Submitted, st.Closes, st.RealizedPnL, st.MeanConfidence))
		}
	} else {
		sb.WriteString("No strategy activity.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Orders and Closes\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Time | Instrument | Outcome | Reason | Qty | Price | P&L | Order |\n")
		sb.WriteString("|------|------------|---------|--------|-----|-------|-----|-------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %.4f | %.2f | %s |\n",
				time.UnixMilli(t.RecordedAt).UTC().Format(time.TimeOnly),
				t.Instrument, t.Outcome, t.Code, t.Quantity, t.Price, t.RealizedPnL, t.BrokerOrderID))
		}
	} else {
		sb.WriteString("No orders.\n")
	}
	sb.WriteString("\n")

	// Open positions
	sb.WriteString("## Open Positions\n\n")
	if len(r.OpenPositions) > 0 {
		sb.WriteString("| Instrument | Sector | Qty | Entry | Stop | Target | Partial | Review |\n")
		sb.WriteString("|------------|--------|-----|-------|------|--------|---------|--------|\n")
		for _, p := range r.OpenPositions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f | %.4f | %.4f | %t | %s |\n",
				p.Instrument, p.Sector, p.Quantity, p.EntryPrice, p.StopPrice, p.TargetPrice,
				p.PartialClosed, p.ReviewFlag))
		}
	} else {
		sb.WriteString("No open positions.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
