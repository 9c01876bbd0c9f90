package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the outer response wrapper returned by the generation
// service for every variant.
type Envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate enforces the envelope invariants: a failure always names an
// error, and a success always carries a payload.
func (e Envelope) Validate() error {
	if !e.Success {
		if strings.TrimSpace(e.Error) == "" {
			return fmt.Errorf("protocol: failure envelope carries no error message")
		}
		return nil
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: success envelope carries no payload")
	}
	return nil
}
