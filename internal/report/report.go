// Package report renders the daily "what's new" digest from a
// classification and the prior ledger state.
package report

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"themeradar/internal/history"
	"themeradar/internal/models"
)

// MaxMessageLen is the delivery surface's hard message-size ceiling.
const MaxMessageLen = 4096

// maxStocksShown caps the stock lines rendered per theme.
const maxStocksShown = 10

// BuildDigest diffs today's classification against every
// (market, theme, ticker) triple that existed strictly before today and
// renders the digest. Theme names are compared across markets, matching
// the ledger's diff semantics. The digest always renders a complete
// message; a day with no changes gets an explicit placeholder line.
func BuildDigest(reportDate string, c *models.Classification, prev map[history.TripleKey]bool) string {
	prevThemeNames := make(map[string]bool, len(prev))
	for key := range prev {
		prevThemeNames[key.Theme] = true
	}

	newThemes := map[string][]models.Assignment{}   // theme never seen before today
	addedThemes := map[string][]models.Assignment{} // new ticker in an existing theme

	for _, mt := range c.Markets() {
		for themeName, stocks := range mt.Themes {
			isNewTheme := !prevThemeNames[themeName]
			for _, s := range stocks {
				key := history.TripleKey{Market: mt.Market, Theme: themeName, Ticker: s.Ticker}
				if prev[key] {
					continue
				}
				if isNewTheme {
					newThemes[themeName] = append(newThemes[themeName], s)
				} else {
					addedThemes[themeName] = append(addedThemes[themeName], s)
				}
			}
		}
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("<b>일일 테마 업데이트</b> - %s", reportDate), "")

	hasContent := false
	for _, themeName := range sortedNames(newThemes) {
		stocks := newThemes[themeName]
		lines = append(lines, fmt.Sprintf("🆕 <b>%s</b> (%d종목)", html.EscapeString(themeName), len(stocks)))
		lines = appendStockLines(lines, stocks)
		lines = append(lines, "")
		hasContent = true
	}
	for _, themeName := range sortedNames(addedThemes) {
		stocks := addedThemes[themeName]
		lines = append(lines, fmt.Sprintf("📈 <b>%s</b> +%d종목", html.EscapeString(themeName), len(stocks)))
		lines = appendStockLines(lines, stocks)
		lines = append(lines, "")
		hasContent = true
	}

	if !hasContent {
		lines = append(lines, "오늘 신규 종목/테마 변동이 없습니다.", "")
	}

	newCount := 0
	for _, v := range newThemes {
		newCount += len(v)
	}
	for _, v := range addedThemes {
		newCount += len(v)
	}
	lines = append(lines, fmt.Sprintf("📊 전체 %d종목 중 <b>신규 %d건</b> | 테마 %d개",
		c.StockCount(), newCount, c.ThemeCount()))

	return strings.Join(lines, "\n")
}

func appendStockLines(lines []string, stocks []models.Assignment) []string {
	shown := stocks
	if len(shown) > maxStocksShown {
		shown = shown[:maxStocksShown]
	}
	for _, s := range shown {
		name := s.Name
		if name == "" {
			name = s.Ticker
		}
		line := "  • " + html.EscapeString(name)
		if s.Ticker != "" && s.Ticker != name {
			line += fmt.Sprintf(" (%s)", html.EscapeString(s.Ticker))
		}
		if s.Reason != "" {
			line += " - " + html.EscapeString(s.Reason)
		}
		lines = append(lines, line)
	}
	return lines
}

// SplitMessage chunks text at line boundaries so every chunk fits in
// maxLen. A single line longer than maxLen is kept whole and emitted
// as its own over-length chunk; digest lines stay well under the
// Telegram ceiling, so no mid-line splitting is done.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, line := range strings.Split(text, "\n") {
		if len(current)+len(line)+1 > maxLen {
			if current != "" {
				chunks = append(chunks, current)
			}
			current = line
		} else if current == "" {
			current = line
		} else {
			current += "\n" + line
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func sortedNames(m map[string][]models.Assignment) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
