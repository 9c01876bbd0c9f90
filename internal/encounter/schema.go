package encounter

import (
	"fmt"
	"strings"
)

// FieldRule names one required field and how to detect its absence.
type FieldRule struct {
	// Field is the user-facing field name used in validation messages.
	Field string
	// Missing reports whether the field is absent or unusable.
	Missing func(Request) bool
}

// Schema declares the contract for a single variant: which fields are
// required, whether the payload arrives as prose, and whether generation
// involves multiple creative iterations (which widens the deadline).
type Schema struct {
	Variant   Variant
	Textual   bool
	Iterative bool
	Required  []FieldRule
}

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}

var schemas = map[Variant]Schema{
	VariantCombat: {
		Variant: VariantCombat,
		Textual: true,
		Required: []FieldRule{
			{Field: "party level", Missing: func(r Request) bool { return r.PartyLevel < 1 || r.PartyLevel > 20 }},
			{Field: "party size", Missing: func(r Request) bool { return r.PartySize < 1 }},
			{Field: "difficulty", Missing: func(r Request) bool { return blank(r.Difficulty) }},
		},
	},
	VariantInfluence: {
		Variant:   VariantInfluence,
		Iterative: true,
		Required: []FieldRule{
			{Field: "context", Missing: func(r Request) bool { return blank(r.Context) }},
		},
	},
	VariantResearch: {
		Variant:   VariantResearch,
		Iterative: true,
		Required: []FieldRule{
			{Field: "context", Missing: func(r Request) bool { return blank(r.Context) }},
		},
	},
	VariantChase: {
		Variant:   VariantChase,
		Iterative: true,
		Required: []FieldRule{
			{Field: "context", Missing: func(r Request) bool { return blank(r.Context) }},
			{Field: "obstacle count", Missing: func(r Request) bool { return r.Obstacles < 1 }},
		},
	},
	VariantDungeon: {
		Variant:   VariantDungeon,
		Iterative: true,
		Required: []FieldRule{
			{Field: "theme", Missing: func(r Request) bool { return blank(r.Theme) }},
			{Field: "room count", Missing: func(r Request) bool { return r.Rooms < 1 }},
		},
	},
	VariantInfiltration: {
		Variant:   VariantInfiltration,
		Iterative: true,
		Required: []FieldRule{
			{Field: "target location", Missing: func(r Request) bool { return blank(r.Location) }},
		},
	},
	VariantLair: {
		Variant:   VariantLair,
		Iterative: true,
		Required: []FieldRule{
			{Field: "creature name", Missing: func(r Request) bool { return blank(r.Creature) }},
		},
	},
	VariantTravel: {
		Variant:   VariantTravel,
		Iterative: true,
		Required: []FieldRule{
			{Field: "terrain", Missing: func(r Request) bool { return blank(r.Terrain) }},
			{Field: "travel days", Missing: func(r Request) bool { return r.Days < 1 }},
		},
	},
}

// SchemaFor returns the schema registered for a variant.
func SchemaFor(v Variant) (Schema, bool) {
	s, ok := schemas[v]
	return s, ok
}

// ValidationError reports a request that failed its variant schema before
// any network call was made. Message names the offending field.
type ValidationError struct {
	Variant Variant
	Field   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("encounter: %s request is missing a valid %s", e.Variant, e.Field)
}

// Validate checks the request against the schema's required-field set and
// reports the first missing field.
func (s Schema) Validate(req Request) error {
	if req.Variant != s.Variant {
		return fmt.Errorf("encounter: request variant %q does not match schema %q", req.Variant, s.Variant)
	}
	for _, rule := range s.Required {
		if rule.Missing(req) {
			return &ValidationError{Variant: s.Variant, Field: rule.Field}
		}
	}
	return nil
}

// ValidateRequest resolves the schema for the request's variant and runs it.
func ValidateRequest(req Request) error {
	schema, ok := SchemaFor(req.Variant)
	if !ok {
		return fmt.Errorf("encounter: unknown variant %q", req.Variant)
	}
	return schema.Validate(req)
}
