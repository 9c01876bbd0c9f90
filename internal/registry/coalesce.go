package registry

import (
	"encoding/json"
	"strings"
)

// Alias priority for legacy server builds that renamed payload keys. The
// first populated alias wins; only the canonical fields leave this layer,
// so neither the parser nor the renderer ever sees alias names.
var (
	titleAliases   = []string{"title", "name", "encounter_title"}
	summaryAliases = []string{"summary", "description", "text", "overview"}
)

// coalesceSummary extracts canonical title and summary fields from a
// structured payload, tolerating the known alias spellings.
func coalesceSummary(payload json.RawMessage) (title, summary string) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", ""
	}
	return firstString(fields, titleAliases), firstString(fields, summaryAliases)
}

func firstString(fields map[string]any, aliases []string) string {
	for _, alias := range aliases {
		if value, ok := fields[alias].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
