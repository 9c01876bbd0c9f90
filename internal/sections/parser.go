// internal/sections/parser.go
//
// Resilient parser for the combat variant's prose output. The generation
// service emits a loosely numbered document ("0. Titel", "1. Szene",
// "2. Monster", "3. Taktik", "4. Win Conditions"); label wording drifts
// between runs and languages, so matching anchors on the number plus a
// keyword stem and falls back to keyword-only headers when the numbering
// is missing entirely. The parser never fails: unmatched sections degrade
// to placeholders.

package sections

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Parsed is the typed record extracted from a combat transcript. Every
// string field is guaranteed non-empty; XPTotal is 0 when no XP label was
// found, which is not an error.
type Parsed struct {
	Title         string `json:"title" yaml:"title"`
	Scene         string `json:"scene" yaml:"scene"`
	Monsters      string `json:"monsters" yaml:"monsters"`
	Tactics       string `json:"tactics" yaml:"tactics"`
	WinConditions string `json:"win_conditions" yaml:"win_conditions"`
	XPTotal       int    `json:"xp_total" yaml:"xp_total"`
}

// Placeholder values used when a section is absent from the source text.
const (
	PlaceholderTitle         = "Untitled encounter"
	PlaceholderScene         = "No scene description found."
	PlaceholderMonsters      = "No monster details found."
	PlaceholderTactics       = "No tactics found."
	PlaceholderWinConditions = "No win conditions found."
)

type field int

const (
	fieldTitle field = iota
	fieldScene
	fieldMonsters
	fieldTactics
	fieldWinConditions
)

// anchor binds a field to its header number and keyword stem. Stems cover
// the English and German labels observed in service output (Title/Titel,
// Scene/Szene, Tactics/Taktik).
type anchor struct {
	field field
	num   string
	stem  string
}

var anchors = []anchor{
	{fieldTitle, "0", `tit(?:le|el)`},
	{fieldScene, "1", `s[cz]ene?`},
	{fieldMonsters, "2", `monster`},
	{fieldTactics, "3", `ta[ck]ti[ck]`},
	{fieldWinConditions, "4", `win`},
}

// Headers must own their line. The anchored grammar demands the numeric
// prefix so a keyword mentioned inside a section body is never treated as
// a boundary; the keyword-only grammar is reserved for the fallback pass.
var (
	anchoredPatterns = compilePatterns(`(?mi)^[ \t]*(?:#+[ \t]*)?%NUM%[.):\-]?[ \t]*%STEM%[^\n]*$`)
	keywordPatterns  = compilePatterns(`(?mi)^[ \t]*(?:#+[ \t]*)?%STEM%[^\n]*$`)
)

func compilePatterns(template string) map[field]*regexp.Regexp {
	out := make(map[field]*regexp.Regexp, len(anchors))
	for _, a := range anchors {
		expr := strings.ReplaceAll(template, "%NUM%", a.num)
		expr = strings.ReplaceAll(expr, "%STEM%", a.stem)
		out[a.field] = regexp.MustCompile(expr)
	}
	return out
}

// xpPattern matches the fixed XP label followed by the first integer.
// Aliases cover the German and English labels seen in the wild.
var xpPattern = regexp.MustCompile(`(?i)(?:gesamt[-\s]?xp|total[-\s]?xp|xp[-\s]?total)[^0-9\n]{0,12}(\d+)`)

// Parse extracts the encounter sections from raw generation output using
// the two-tier strategy: an anchored pass keyed on number+stem headers,
// then a keyword-only fallback if the anchored pass found none of the four
// content sections (the title alone does not count).
func Parse(text string) Parsed {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	primary := splitAt(text, anchoredPatterns)
	found := primary
	if countContent(primary) == 0 {
		fallback := splitAt(text, keywordPatterns)
		if title, ok := primary[fieldTitle]; ok {
			if _, has := fallback[fieldTitle]; !has {
				fallback[fieldTitle] = title
			}
		}
		found = fallback
	}

	parsed := Parsed{
		Title:         valueOr(found, fieldTitle, PlaceholderTitle),
		Scene:         valueOr(found, fieldScene, PlaceholderScene),
		Monsters:      valueOr(found, fieldMonsters, PlaceholderMonsters),
		Tactics:       valueOr(found, fieldTactics, PlaceholderTactics),
		WinConditions: valueOr(found, fieldWinConditions, PlaceholderWinConditions),
	}
	if monsters, ok := found[fieldMonsters]; ok {
		parsed.XPTotal = extractXP(monsters)
	}
	return parsed
}

type headerMatch struct {
	field      field
	start, end int
}

// splitAt locates every header matching the per-field patterns, orders the
// matches by position in the source, and slices each section from the end
// of its header line to the start of the next header (or end of text).
// Overlapping or out-of-order headers are resolved purely by position.
func splitAt(text string, patterns map[field]*regexp.Regexp) map[field]string {
	var matches []headerMatch
	for f, pattern := range patterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, headerMatch{field: f, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	found := make(map[field]string, len(matches))
	for i, m := range matches {
		if _, seen := found[m.field]; seen {
			// A repeated header still bounds the preceding section but
			// never overwrites the first occurrence's content.
			continue
		}
		next := len(text)
		if i+1 < len(matches) {
			next = matches[i+1].start
		}
		content := strings.TrimSpace(text[m.end:next])
		if content == "" {
			continue
		}
		found[m.field] = content
	}
	return found
}

// countContent reports how many of the four content sections were found;
// the title is exempt from the fallback trigger check.
func countContent(found map[field]string) int {
	count := 0
	for _, f := range []field{fieldScene, fieldMonsters, fieldTactics, fieldWinConditions} {
		if _, ok := found[f]; ok {
			count++
		}
	}
	return count
}

func valueOr(found map[field]string, f field, placeholder string) string {
	if value, ok := found[f]; ok && value != "" {
		return value
	}
	return placeholder
}

// extractXP pulls the total XP figure from the monsters section. The first
// label-integer match wins; summing multiple matches was considered and
// rejected to preserve the behavior of the shipped generator.
func extractXP(monsters string) int {
	match := xpPattern.FindStringSubmatch(monsters)
	if match == nil {
		return 0
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return value
}
