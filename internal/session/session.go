// internal/session/session.go
//
// Persisted session state: the last successful artifact, its variant tag,
// and whether a view was open when the process last ran. The registry is
// the only writer, and every write replaces the whole record so a restart
// never observes a partially updated session.

package session

import "github.com/kingrea/encounter-forge/internal/encounter"

// State is the process-wide persisted session record.
type State struct {
	LastArtifact *encounter.Artifact `json:"last_artifact,omitempty"`
	LastVariant  encounter.Variant   `json:"last_variant,omitempty"`
	ViewOpen     bool                `json:"view_open"`
}

// Store persists session state. Save must replace all keys as a group;
// readers must never observe a state where only some of them changed.
type Store interface {
	Load() (State, error)
	Save(State) error
	Close() error
}
