// internal/registry/registry.go
//
// The variant registry owns the session state machine. It validates
// requests against their variant schema before any network call, keeps at
// most one request in flight, normalizes successful payloads into
// artifacts (running the section parser for the combat variant), and is
// the sole writer of persisted session state. The in-memory last-request
// cache backs regenerate and deliberately does not survive a restart.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/encounter-forge/internal/encounter"
	"github.com/kingrea/encounter-forge/internal/sections"
	"github.com/kingrea/encounter-forge/internal/session"
)

// Phase enumerates the session state machine states.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhaseDisplaying Phase = "displaying"
)

var (
	// ErrRequestInFlight rejects a second submit while one is requesting.
	ErrRequestInFlight = errors.New("registry: a generation request is already in flight")
	// ErrViewOpen rejects a fresh submit while an artifact is displayed;
	// the existing view must be closed (or regenerated) first.
	ErrViewOpen = errors.New("registry: an encounter view is already open")
	// ErrNoOpenView rejects close/regenerate when nothing is displayed.
	ErrNoOpenView = errors.New("registry: no encounter view is open")
	// ErrNothingToRegenerate is returned when no prior request is cached,
	// e.g. after a cold restore.
	ErrNothingToRegenerate = errors.New("registry: nothing to regenerate; no prior request this session")
)

// Generator abstracts the protocol client.
type Generator interface {
	Generate(ctx context.Context, req encounter.Request) (json.RawMessage, error)
}

// Registry is the variant registry and session state machine.
type Registry struct {
	generator Generator
	store     session.Store
	clock     func() time.Time
	newID     func() string

	mu          sync.Mutex
	phase       Phase
	current     *encounter.Artifact
	lastRequest *encounter.Request
}

// Option customizes registry construction.
type Option func(*Registry)

// WithClock overrides the clock used for artifact timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIDSource overrides artifact ID generation. Tests use this for
// deterministic identifiers.
func WithIDSource(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// New builds a registry over a generator and a session store.
func New(generator Generator, store session.Store, opts ...Option) *Registry {
	r := &Registry{
		generator: generator,
		store:     store,
		clock:     func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Phase returns the current state machine phase.
func (r *Registry) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Current returns the displayed artifact, or nil outside Displaying.
func (r *Registry) Current() *encounter.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// CanRegenerate reports whether a cached request is available to replay.
func (r *Registry) CanRegenerate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == PhaseDisplaying && r.lastRequest != nil
}

// Submit validates the request, runs one generation call, normalizes the
// payload into an artifact, persists the session, and moves to Displaying.
// Only legal from Idle. Validation failures never reach the generator.
func (r *Registry) Submit(ctx context.Context, req encounter.Request) (*encounter.Artifact, error) {
	schema, ok := encounter.SchemaFor(req.Variant)
	if !ok {
		return nil, fmt.Errorf("registry: unknown variant %q", req.Variant)
	}
	if err := schema.Validate(req); err != nil {
		return nil, err
	}

	r.mu.Lock()
	switch r.phase {
	case PhaseRequesting:
		r.mu.Unlock()
		return nil, ErrRequestInFlight
	case PhaseDisplaying:
		r.mu.Unlock()
		return nil, ErrViewOpen
	}
	r.phase = PhaseRequesting
	r.mu.Unlock()

	payload, err := r.generator.Generate(ctx, req)
	if err != nil {
		r.reset()
		return nil, err
	}

	artifact := r.normalize(req.Variant, schema, payload)
	state := session.State{
		LastArtifact: artifact,
		LastVariant:  artifact.Variant,
		ViewOpen:     true,
	}
	if err := r.store.Save(state); err != nil {
		r.reset()
		return nil, fmt.Errorf("registry: persist session: %w", err)
	}

	r.mu.Lock()
	cached := req
	r.lastRequest = &cached
	r.current = artifact
	r.phase = PhaseDisplaying
	r.mu.Unlock()
	return artifact, nil
}

// Close persists view_open=false, keeping the artifact for later restore,
// and returns to Idle. Only legal from Displaying.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseDisplaying {
		return ErrNoOpenView
	}
	state := session.State{
		LastArtifact: r.current,
		LastVariant:  r.current.Variant,
		ViewOpen:     false,
	}
	if err := r.store.Save(state); err != nil {
		return fmt.Errorf("registry: persist session: %w", err)
	}
	r.current = nil
	r.phase = PhaseIdle
	return nil
}

// Restore reads the persisted session at process start. When an artifact
// was stored with its view open, the registry reconstructs the display
// without contacting the service and moves to Displaying; otherwise it
// stays Idle and returns nil.
func (r *Registry) Restore() (*encounter.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseIdle {
		return nil, fmt.Errorf("registry: restore is only legal at startup")
	}
	state, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("registry: restore session: %w", err)
	}
	if state.LastArtifact == nil || !state.ViewOpen {
		return nil, nil
	}
	r.current = state.LastArtifact
	r.phase = PhaseDisplaying
	return r.current, nil
}

// Regenerate replays the last submitted request through Submit. Only legal
// from Displaying; fails with ErrNothingToRegenerate when no request is
// cached (the cache is in-memory only and does not survive restarts).
func (r *Registry) Regenerate(ctx context.Context) (*encounter.Artifact, error) {
	r.mu.Lock()
	if r.phase != PhaseDisplaying {
		r.mu.Unlock()
		return nil, ErrNoOpenView
	}
	if r.lastRequest == nil {
		r.mu.Unlock()
		return nil, ErrNothingToRegenerate
	}
	req := *r.lastRequest
	// The displayed view is being replaced; drop back to Idle so the
	// replayed submit is legal. The previous artifact stays persisted and
	// is only overwritten when the new generation succeeds.
	r.current = nil
	r.phase = PhaseIdle
	r.mu.Unlock()
	return r.Submit(ctx, req)
}

func (r *Registry) reset() {
	r.mu.Lock()
	r.phase = PhaseIdle
	r.mu.Unlock()
}

// normalize wraps a successful payload into an immutable artifact. The
// combat variant runs the section parser; structured variants keep their
// payload as delivered plus coalesced summary fields.
func (r *Registry) normalize(variant encounter.Variant, schema encounter.Schema, payload json.RawMessage) *encounter.Artifact {
	artifact := &encounter.Artifact{
		ID:          r.newID(),
		Variant:     variant,
		GeneratedAt: r.clock(),
	}
	if schema.Textual {
		text := rawTextPayload(payload)
		parsed := sections.Parse(text)
		artifact.RawText = text
		artifact.Sections = &parsed
		return artifact
	}
	artifact.Payload = append(json.RawMessage(nil), payload...)
	artifact.Title, artifact.Summary = coalesceSummary(payload)
	return artifact
}

// rawTextPayload unwraps the combat payload. The service encodes the prose
// as a JSON string, but older builds shipped it unquoted.
func rawTextPayload(payload json.RawMessage) string {
	var text string
	if err := json.Unmarshal(payload, &text); err == nil {
		return text
	}
	return string(payload)
}
