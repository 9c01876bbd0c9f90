package protocol

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/encounter-forge/internal/config"
)

const (
	// DefaultBaseURL points at a locally running generation service.
	DefaultBaseURL = "http://127.0.0.1:8686"
	// DefaultCombatTimeout bounds the single-iteration combat call.
	DefaultCombatTimeout = 120 * time.Second
	// DefaultGenerationTimeout bounds the multi-iteration creative variants.
	DefaultGenerationTimeout = 300 * time.Second
)

// Settings captures runtime configuration for the generation client.
type Settings struct {
	BaseURL           string
	APIKey            string
	CombatTimeout     time.Duration
	GenerationTimeout time.Duration
}

// SettingsFromConfig builds Settings from the project's .forge config with
// environment overrides applied on top.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		BaseURL:           DefaultBaseURL,
		CombatTimeout:     DefaultCombatTimeout,
		GenerationTimeout: DefaultGenerationTimeout,
	}
	if cfg != nil {
		service := cfg.Project.Service
		if url := strings.TrimSpace(service.URL); url != "" {
			settings.BaseURL = url
		}
		settings.APIKey = strings.TrimSpace(service.APIKey)
		if service.CombatTimeoutSeconds > 0 {
			settings.CombatTimeout = time.Duration(service.CombatTimeoutSeconds) * time.Second
		}
		if service.GenerationTimeoutSeconds > 0 {
			settings.GenerationTimeout = time.Duration(service.GenerationTimeoutSeconds) * time.Second
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if url := strings.TrimSpace(os.Getenv("FORGE_SERVICE_URL")); url != "" {
		s.BaseURL = url
	}
	if key := strings.TrimSpace(os.Getenv("FORGE_API_KEY")); key != "" {
		s.APIKey = key
	}
	if value := strings.TrimSpace(os.Getenv("FORGE_COMBAT_TIMEOUT")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			s.CombatTimeout = time.Duration(seconds) * time.Second
		}
	}
	if value := strings.TrimSpace(os.Getenv("FORGE_GENERATION_TIMEOUT")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			s.GenerationTimeout = time.Duration(seconds) * time.Second
		}
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.CombatTimeout <= 0 {
		s.CombatTimeout = DefaultCombatTimeout
	}
	if s.GenerationTimeout <= 0 {
		s.GenerationTimeout = DefaultGenerationTimeout
	}
}
