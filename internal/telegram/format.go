package telegram

import (
	"fmt"
	"strings"

	"healthmate/internal/diet"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
)

var categoryIcons = map[diet.Category]string{
	diet.CategoryBreakfast: "🍳",
	diet.CategoryLunch:     "🥪",
	diet.CategoryDinner:    "🍲",
	diet.CategorySnack:     "🍎",
	diet.CategoryLifestyle: "🏃",
}

func formatSuggestions(result diet.SuggestionsResult) string {
	var sb strings.Builder
	sb.WriteString("🥗 *Your Suggestions*\n\n")
	for _, s := range result.Suggestions {
		sb.WriteString(fmt.Sprintf("%s *%s*\n%s\n\n", categoryIcons[s.Category], s.Title, s.Description))
	}
	if result.Source == diet.SourceFallback {
		sb.WriteString("_These are general suggestions; personalized ones were unavailable._")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPreferences(p prefs.Set) string {
	var sb strings.Builder
	sb.WriteString("🚫 *Allergies*: ")
	sb.WriteString(listOrNone(p.Allergies))
	sb.WriteString("\n👎 *Dislikes*: ")
	sb.WriteString(listOrNone(p.Dislikes))
	return sb.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "_none_"
	}
	return strings.Join(items, ", ")
}

func formatPlanList(plans []diet.Plan) string {
	if len(plans) == 0 {
		return "_No saved plans yet._"
	}
	var sb strings.Builder
	sb.WriteString("📚 *Saved Plans*\n\n")
	for i, p := range plans {
		first, _, _ := strings.Cut(strings.TrimSpace(p.Content), "\n")
		if r := []rune(first); len(r) > 60 {
			first = string(r[:60]) + "…"
		}
		sb.WriteString(fmt.Sprintf("%d. *%s* %s\n", i+1, p.CreatedAt.Format("2006-01-02"), first))
	}
	return sb.String()
}

func formatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}
