package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a wallet report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Wallet Report: %s\n\n", r.WalletAddress))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: last %d days\n\n", r.WindowDays))

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades Created | %d |\n", s.TradesCreated))
	sb.WriteString(fmt.Sprintf("| Trades Deleted | %d |\n", s.TradesDeleted))
	sb.WriteString(fmt.Sprintf("| Completed Cycles | %d |\n", s.CompletedCycles))
	sb.WriteString(fmt.Sprintf("| Winning / Losing | %d / %d |\n", s.WinningTrades, s.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRatePercent))
	sb.WriteString(fmt.Sprintf("| Current Streak (W/L) | %d / %d |\n", s.CurrentWinningStreak, s.CurrentLosingStreak))
	sb.WriteString(fmt.Sprintf("| Longest Streak (W/L) | %d / %d |\n", s.LongestWinningStreak, s.LongestLosingStreak))
	sb.WriteString(fmt.Sprintf("| Net P/L (USD) | %s |\n", s.NetProfitLossUSD.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Gross Profit / Loss (USD) | %s / %s |\n", s.TotalProfitUSD.StringFixed(2), s.TotalLossUSD.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Gross Profit / Loss (XRD) | %s / %s |\n", s.TotalProfitXRD.StringFixed(8), s.TotalLossXRD.StringFixed(8)))
	sb.WriteString(fmt.Sprintf("| Avg Profit per Cycle (USD) | %s |\n", s.AverageProfitPerTrade.StringFixed(2)))
	if s.LastCalculated > 0 {
		sb.WriteString(fmt.Sprintf("| Last Calculated | %s |\n", time.Unix(s.LastCalculated, 0).UTC().Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Daily rollups
	sb.WriteString("## Daily Performance\n\n")
	if len(r.Daily) > 0 {
		sb.WriteString("| Date | P/L (XRD) | P/L (USD) | Volume (XRD) | Volume (USD) |\n")
		sb.WriteString("|------|-----------|-----------|--------------|--------------|\n")
		for _, d := range r.Daily {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				d.Date,
				d.ProfitLossXRD.StringFixed(8),
				d.ProfitLossUSD.StringFixed(2),
				d.VolumeXRD.StringFixed(8),
				d.VolumeUSD.StringFixed(2)))
		}
	} else {
		sb.WriteString("No activity in the window.\n")
	}
	sb.WriteString("\n")

	// Recent executions
	sb.WriteString("## Recent Executions\n\n")
	if len(r.RecentExecutions) > 0 {
		sb.WriteString("| Time (UTC) | Pair | Side | Status | Strategy | USD Value | Realized |\n")
		sb.WriteString("|------------|------|------|--------|----------|-----------|----------|\n")
		for _, e := range r.RecentExecutions {
			ts := time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02 15:04:05")
			profit := e.Profit
			if profit == "" {
				profit = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				ts, e.Pair, e.Side, e.Status, e.Strategy, e.USDValue.StringFixed(2), profit))
		}
	} else {
		sb.WriteString("No executions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
