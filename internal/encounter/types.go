// internal/encounter/types.go
//
// Core domain types for Encounter Forge: the closed set of encounter
// variants, the request union keyed by variant, and the normalized
// artifact produced by a successful generation.

package encounter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/encounter-forge/internal/sections"
)

// Variant identifies one of the fixed encounter-generation shapes.
type Variant string

const (
	VariantCombat       Variant = "combat"
	VariantInfluence    Variant = "influence"
	VariantResearch     Variant = "research"
	VariantChase        Variant = "chase"
	VariantDungeon      Variant = "dungeon"
	VariantInfiltration Variant = "infiltration"
	VariantLair         Variant = "lair"
	VariantTravel       Variant = "travel"
)

// Variants lists every known tag in display order.
func Variants() []Variant {
	return []Variant{
		VariantCombat,
		VariantInfluence,
		VariantResearch,
		VariantChase,
		VariantDungeon,
		VariantInfiltration,
		VariantLair,
		VariantTravel,
	}
}

// ParseVariant resolves a tag string to a known variant.
func ParseVariant(value string) (Variant, error) {
	tag := Variant(strings.ToLower(strings.TrimSpace(value)))
	for _, v := range Variants() {
		if v == tag {
			return v, nil
		}
	}
	return "", fmt.Errorf("encounter: unknown variant %q", value)
}

// FriendlyName returns a human-readable label for menus and notices.
func (v Variant) FriendlyName() string {
	value := strings.TrimSpace(string(v))
	if value == "" {
		return "Unknown"
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

// Request carries the fields for one generation call. The active field set
// is determined by Variant; fields that do not belong to the declared
// variant's schema are ignored by both validation and the service.
type Request struct {
	Variant Variant `json:"variant"`

	// Combat
	PartyLevel int    `json:"party_level,omitempty"`
	PartySize  int    `json:"party_size,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`

	// Influence, research, chase, infiltration
	Context string `json:"context,omitempty"`

	// Chase
	Obstacles int `json:"obstacles,omitempty"`

	// Dungeon
	Theme string `json:"theme,omitempty"`
	Rooms int    `json:"rooms,omitempty"`

	// Infiltration
	Location string `json:"location,omitempty"`

	// Lair
	Creature string `json:"creature,omitempty"`

	// Travel
	Terrain string `json:"terrain,omitempty"`
	Days    int    `json:"days,omitempty"`
}

// Artifact is the normalized result of one successful generation. It is
// immutable once constructed; a regeneration produces a fresh artifact.
type Artifact struct {
	ID          string    `json:"id"`
	Variant     Variant   `json:"variant"`
	GeneratedAt time.Time `json:"generated_at"`

	// Structured variants keep the service payload as delivered, plus the
	// coalesced canonical summary fields.
	Payload json.RawMessage `json:"payload,omitempty"`
	Title   string          `json:"title,omitempty"`
	Summary string          `json:"summary,omitempty"`

	// The combat variant keeps the parser output and the original prose
	// for audit.
	RawText  string           `json:"raw_text,omitempty"`
	Sections *sections.Parsed `json:"sections,omitempty"`
}

// Textual reports whether the artifact came from the prose-payload variant.
func (a *Artifact) Textual() bool {
	return a != nil && a.Sections != nil
}

// DisplayTitle returns the best available headline for the artifact.
func (a *Artifact) DisplayTitle() string {
	if a == nil {
		return ""
	}
	if a.Sections != nil && a.Sections.Title != "" {
		return a.Sections.Title
	}
	if a.Title != "" {
		return a.Title
	}
	return a.Variant.FriendlyName() + " encounter"
}
