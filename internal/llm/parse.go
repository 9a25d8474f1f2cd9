package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ThemeStock is the per-stock object the classifier emits inside a
// theme map.
type ThemeStock struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
	Sector string `json:"sector"`
	Reason string `json:"reason"`
}

// Truncated responses usually die mid-array or mid-string; these
// suffixes recover the common cases.
var completionSuffixes = []string{``, `]`, `}]`, `}]}]`, `"}]`}

// ParseThemes salvages a theme-name → stock-list object from a raw
// classifier response. It tries, in order: code-fence stripping with a
// direct parse, extraction of the outermost braced region, and
// bracket-completion for truncated output. A nil map with an error
// means the response is malformed beyond salvage; callers take their
// documented stage-local fallback.
func ParseThemes(raw string) (map[string][]ThemeStock, error) {
	text := StripFences(raw)

	if themes, ok := tryThemes(text); ok {
		return themes, nil
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if themes, ok := tryThemes(text[start : end+1]); ok {
			return themes, nil
		}
	}

	for _, suffix := range completionSuffixes {
		if themes, ok := tryThemes(text + suffix); ok {
			return themes, nil
		}
		if strings.HasPrefix(text, "{") {
			if themes, ok := tryThemes(text + suffix + "}"); ok {
				return themes, nil
			}
		}
	}

	return nil, fmt.Errorf("cannot parse classifier response: %s", head(raw, 200))
}

func tryThemes(text string) (map[string][]ThemeStock, bool) {
	var themes map[string][]ThemeStock
	if err := json.Unmarshal([]byte(text), &themes); err != nil {
		return nil, false
	}
	return themes, true
}

// StripFences removes a markdown code-fence wrapper if present.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
