package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/encounter-forge/internal/encounter"
	"github.com/kingrea/encounter-forge/internal/session"
)

// fakeGenerator returns canned payloads and counts calls. Set block to make
// Generate wait until released.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	payloads []json.RawMessage
	err      error
	block    chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req encounter.Request) (json.RawMessage, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	if len(g.payloads) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if n > len(g.payloads) {
		n = len(g.payloads)
	}
	return g.payloads[n-1], nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return []string{"art-1", "art-2", "art-3"}[n-1]
	}
}

func combatRequest() encounter.Request {
	return encounter.Request{
		Variant:    encounter.VariantCombat,
		PartyLevel: 3,
		PartySize:  4,
		Difficulty: "medium",
	}
}

func newTestRegistry(gen *fakeGenerator, store session.Store) *Registry {
	return New(gen, store, WithClock(fixedClock()), WithIDSource(sequentialIDs()))
}

func TestSubmitCombatParsesSections(t *testing.T) {
	transcript := "## 0. Titel\nGoblin Ambush\n## 1. Szene\nRain falls.\n## 2. Monster\nGesamt-XP: 80\nTwo goblins.\n## 3. Taktik\nFlank.\n## 4. Win Conditions\nSurvive."
	encoded, _ := json.Marshal(transcript)
	gen := &fakeGenerator{payloads: []json.RawMessage{encoded}}
	reg := newTestRegistry(gen, session.NewMemoryStore())

	artifact, err := reg.Submit(context.Background(), combatRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if artifact.ID != "art-1" {
		t.Fatalf("artifact ID = %q", artifact.ID)
	}
	if !artifact.Textual() {
		t.Fatal("combat artifact should carry parsed sections")
	}
	if artifact.RawText != transcript {
		t.Fatalf("raw text not preserved:\n%s", artifact.RawText)
	}
	if artifact.Sections.Title != "Goblin Ambush" {
		t.Fatalf("title = %q", artifact.Sections.Title)
	}
	if artifact.Sections.XPTotal != 80 {
		t.Fatalf("xp = %d", artifact.Sections.XPTotal)
	}
	if reg.Phase() != PhaseDisplaying {
		t.Fatalf("phase = %q", reg.Phase())
	}
}

func TestSubmitStructuredCoalescesSummary(t *testing.T) {
	payload := json.RawMessage(`{"name":"The Veiled Court","description":"A masquerade hides a coup.","rounds":3}`)
	gen := &fakeGenerator{payloads: []json.RawMessage{payload}}
	reg := newTestRegistry(gen, session.NewMemoryStore())

	artifact, err := reg.Submit(context.Background(), encounter.Request{
		Variant: encounter.VariantInfluence,
		Context: "masquerade ball",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if artifact.Textual() {
		t.Fatal("structured artifact should not carry sections")
	}
	if artifact.Title != "The Veiled Court" {
		t.Fatalf("title = %q", artifact.Title)
	}
	if artifact.Summary != "A masquerade hides a coup." {
		t.Fatalf("summary = %q", artifact.Summary)
	}
	if diff := cmp.Diff(string(payload), string(artifact.Payload)); diff != "" {
		t.Fatalf("payload altered (-want +got):\n%s", diff)
	}
}

func TestSubmitValidationFailureNeverReachesGenerator(t *testing.T) {
	gen := &fakeGenerator{}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	_, err := reg.Submit(context.Background(), encounter.Request{Variant: encounter.VariantResearch, Context: "   "})
	var verr *encounter.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Field != "context" {
		t.Fatalf("flagged field %q, want context", verr.Field)
	}
	if gen.callCount() != 0 {
		t.Fatalf("generator called %d times for an invalid request", gen.callCount())
	}
	if store.Saves() != 0 {
		t.Fatalf("session saved %d times for an invalid request", store.Saves())
	}
	if reg.Phase() != PhaseIdle {
		t.Fatalf("phase = %q, want idle", reg.Phase())
	}
}

func TestSubmitRejectedWhileRequestInFlight(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	reg := newTestRegistry(gen, session.NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		_, err := reg.Submit(context.Background(), combatRequest())
		done <- err
	}()

	// Wait until the first submit reaches the generator.
	deadline := time.After(2 * time.Second)
	for gen.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first submit never reached the generator")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := reg.Submit(context.Background(), combatRequest()); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("second submit: %v, want ErrRequestInFlight", err)
	}

	close(gen.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator called %d times", gen.callCount())
	}
}

func TestSubmitRejectedWhileViewOpen(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{json.RawMessage(`"a fight"`)}}
	reg := newTestRegistry(gen, session.NewMemoryStore())

	if _, err := reg.Submit(context.Background(), combatRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := reg.Submit(context.Background(), combatRequest()); !errors.Is(err, ErrViewOpen) {
		t.Fatalf("second submit: %v, want ErrViewOpen", err)
	}
}

func TestGenerationFailureReturnsToIdle(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	if _, err := reg.Submit(context.Background(), combatRequest()); err == nil {
		t.Fatal("expected generation error")
	}
	if reg.Phase() != PhaseIdle {
		t.Fatalf("phase = %q, want idle after failure", reg.Phase())
	}
	if store.Saves() != 0 {
		t.Fatalf("session saved %d times after failure", store.Saves())
	}

	// The slot is free again.
	gen.err = nil
	gen.payloads = []json.RawMessage{json.RawMessage(`"second try"`)}
	if _, err := reg.Submit(context.Background(), combatRequest()); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
}

func TestCloseKeepsArtifactForRestore(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{json.RawMessage(`"a fight"`)}}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	want, err := reg.Submit(context.Background(), combatRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if reg.Phase() != PhaseIdle {
		t.Fatalf("phase = %q", reg.Phase())
	}
	if reg.Current() != nil {
		t.Fatal("current artifact should be cleared after close")
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.ViewOpen {
		t.Fatal("view_open should be false after close")
	}
	if diff := cmp.Diff(want, state.LastArtifact); diff != "" {
		t.Fatalf("persisted artifact mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseWithoutViewFails(t *testing.T) {
	reg := newTestRegistry(&fakeGenerator{}, session.NewMemoryStore())
	if err := reg.Close(); !errors.Is(err, ErrNoOpenView) {
		t.Fatalf("Close: %v, want ErrNoOpenView", err)
	}
}

func TestRestoreReopensViewWithoutNetwork(t *testing.T) {
	transcript := "## 0. Titel\nGoblin Ambush\n## 2. Monster\nGesamt-XP: 80"
	encoded, _ := json.Marshal(transcript)
	gen := &fakeGenerator{payloads: []json.RawMessage{encoded}}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	want, err := reg.Submit(context.Background(), combatRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Simulate a restart: fresh registry over the same store, generator
	// that must stay untouched.
	restartGen := &fakeGenerator{}
	restarted := newTestRegistry(restartGen, store)
	got, err := restarted.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored artifact mismatch (-want +got):\n%s", diff)
	}
	if restartGen.callCount() != 0 {
		t.Fatalf("restore contacted the generator %d times", restartGen.callCount())
	}
	if restarted.Phase() != PhaseDisplaying {
		t.Fatalf("phase = %q", restarted.Phase())
	}
}

func TestRestoreAfterCloseStaysIdle(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{json.RawMessage(`"a fight"`)}}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	if _, err := reg.Submit(context.Background(), combatRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted := newTestRegistry(&fakeGenerator{}, store)
	got, err := restarted.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got != nil {
		t.Fatal("a closed view must not reopen on restart")
	}
	if restarted.Phase() != PhaseIdle {
		t.Fatalf("phase = %q", restarted.Phase())
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	reg := newTestRegistry(&fakeGenerator{}, session.NewMemoryStore())
	got, err := reg.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got != nil {
		t.Fatal("empty store should restore nothing")
	}
}

func TestRegenerateReplaysLastRequest(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{
		json.RawMessage(`"first draft"`),
		json.RawMessage(`"second draft"`),
	}}
	reg := newTestRegistry(gen, session.NewMemoryStore())

	first, err := reg.Submit(context.Background(), combatRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !reg.CanRegenerate() {
		t.Fatal("CanRegenerate should be true after a successful submit")
	}

	second, err := reg.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if gen.callCount() != 2 {
		t.Fatalf("generator called %d times, want 2", gen.callCount())
	}
	if second.ID == first.ID {
		t.Fatal("regeneration should mint a fresh artifact")
	}
	if second.RawText != "second draft" {
		t.Fatalf("raw text = %q", second.RawText)
	}
	if reg.Phase() != PhaseDisplaying {
		t.Fatalf("phase = %q", reg.Phase())
	}
}

func TestRegenerateAfterRestartIsRefused(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{json.RawMessage(`"a fight"`)}}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)
	if _, err := reg.Submit(context.Background(), combatRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	restarted := newTestRegistry(&fakeGenerator{}, store)
	if _, err := restarted.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restarted.CanRegenerate() {
		t.Fatal("the request cache must not survive a restart")
	}
	_, err := restarted.Regenerate(context.Background())
	if !errors.Is(err, ErrNothingToRegenerate) {
		t.Fatalf("Regenerate: %v, want ErrNothingToRegenerate", err)
	}
	if !strings.Contains(err.Error(), "nothing to regenerate") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestRegenerateWithoutViewFails(t *testing.T) {
	reg := newTestRegistry(&fakeGenerator{}, session.NewMemoryStore())
	if _, err := reg.Regenerate(context.Background()); !errors.Is(err, ErrNoOpenView) {
		t.Fatalf("Regenerate: %v, want ErrNoOpenView", err)
	}
}

func TestRegenerateFailureKeepsPersistedArtifact(t *testing.T) {
	gen := &fakeGenerator{payloads: []json.RawMessage{json.RawMessage(`"first draft"`)}}
	store := session.NewMemoryStore()
	reg := newTestRegistry(gen, store)

	first, err := reg.Submit(context.Background(), combatRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	gen.err = errors.New("boom")
	if _, err := reg.Regenerate(context.Background()); err == nil {
		t.Fatal("expected regeneration failure")
	}
	if reg.Phase() != PhaseIdle {
		t.Fatalf("phase = %q", reg.Phase())
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(first, state.LastArtifact); diff != "" {
		t.Fatalf("persisted artifact changed by a failed regeneration (-want +got):\n%s", diff)
	}
}
