package encounter

import (
	"errors"
	"strings"
	"testing"
)

func validRequest(v Variant) Request {
	switch v {
	case VariantCombat:
		return Request{Variant: v, PartyLevel: 5, PartySize: 4, Difficulty: "hard"}
	case VariantChase:
		return Request{Variant: v, Context: "rooftop pursuit", Obstacles: 3}
	case VariantDungeon:
		return Request{Variant: v, Theme: "flooded crypt", Rooms: 6}
	case VariantInfiltration:
		return Request{Variant: v, Location: "ducal palace"}
	case VariantLair:
		return Request{Variant: v, Creature: "adult black dragon"}
	case VariantTravel:
		return Request{Variant: v, Terrain: "tundra", Days: 4}
	default:
		return Request{Variant: v, Context: "court intrigue in Waterdeep"}
	}
}

func TestEveryVariantHasASchema(t *testing.T) {
	for _, v := range Variants() {
		if _, ok := SchemaFor(v); !ok {
			t.Fatalf("no schema registered for %q", v)
		}
	}
}

func TestValidRequestsPassAllVariants(t *testing.T) {
	for _, v := range Variants() {
		if err := ValidateRequest(validRequest(v)); err != nil {
			t.Fatalf("%s: valid request rejected: %v", v, err)
		}
	}
}

func TestCombatBounds(t *testing.T) {
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"level zero", Request{Variant: VariantCombat, PartySize: 4, Difficulty: "easy"}, "party level"},
		{"level too high", Request{Variant: VariantCombat, PartyLevel: 21, PartySize: 4, Difficulty: "easy"}, "party level"},
		{"no party", Request{Variant: VariantCombat, PartyLevel: 5, Difficulty: "easy"}, "party size"},
		{"blank difficulty", Request{Variant: VariantCombat, PartyLevel: 5, PartySize: 4, Difficulty: "  "}, "difficulty"},
	}
	for _, tc := range cases {
		err := ValidateRequest(tc.req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: flagged field %q, want %q", tc.name, verr.Field, tc.field)
		}
	}
}

func TestResearchRequiresContext(t *testing.T) {
	err := ValidateRequest(Request{Variant: VariantResearch})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Field != "context" {
		t.Fatalf("flagged field %q, want context", verr.Field)
	}
	if !strings.Contains(err.Error(), "context") {
		t.Fatalf("message should name the field: %q", err.Error())
	}
}

func TestExtraneousFieldsAreIgnored(t *testing.T) {
	req := validRequest(VariantLair)
	req.PartyLevel = 99
	req.Rooms = -4
	if err := ValidateRequest(req); err != nil {
		t.Fatalf("fields outside the lair schema should not be checked: %v", err)
	}
}

func TestUnknownVariantRejected(t *testing.T) {
	if err := ValidateRequest(Request{Variant: "heist"}); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestCombatIsTheOnlyTextualVariant(t *testing.T) {
	for _, v := range Variants() {
		s, _ := SchemaFor(v)
		if got, want := s.Textual, v == VariantCombat; got != want {
			t.Fatalf("%s: Textual = %v, want %v", v, got, want)
		}
		if got, want := s.Iterative, v != VariantCombat; got != want {
			t.Fatalf("%s: Iterative = %v, want %v", v, got, want)
		}
	}
}

func TestParseVariantNormalizesInput(t *testing.T) {
	got, err := ParseVariant("  Combat ")
	if err != nil {
		t.Fatalf("ParseVariant: %v", err)
	}
	if got != VariantCombat {
		t.Fatalf("got %q", got)
	}
	if _, err := ParseVariant("skirmish"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}
