// internal/config/config.go
//
// This package handles configuration and the .forge directory structure.
// Every project that uses Encounter Forge gets a .forge/ folder created in
// its root, holding the config file, the run log, and the session database.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ForgeDir is the name of the directory we create in each project.
const ForgeDir = ".forge"

const defaultProjectConfigYAML = `# encounter forge configuration
version: 1

# Generation service endpoint. The api_key is sent as a bearer token when set.
service:
  url: http://127.0.0.1:8686
  # api_key: your-key-here
  # Deadlines in seconds. Combat runs a single creative iteration; the
  # other variants loop and need the longer bound.
  # combat_timeout_seconds: 120
  # generation_timeout_seconds: 300
`

// ServiceConfig models the service block of .forge/config.yaml.
type ServiceConfig struct {
	URL                      string `yaml:"url"`
	APIKey                   string `yaml:"api_key,omitempty"`
	CombatTimeoutSeconds     int    `yaml:"combat_timeout_seconds,omitempty"`
	GenerationTimeoutSeconds int    `yaml:"generation_timeout_seconds,omitempty"`
}

// ProjectConfig models .forge/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Service ServiceConfig `yaml:"service"`
}

// Config holds the runtime configuration for Encounter Forge.
type Config struct {
	// ProjectDir is the directory where the user ran `forge` from.
	ProjectDir string

	// ForgeProjectDir is ProjectDir/.forge.
	ForgeProjectDir string

	Project ProjectConfig
}

// InitForgeDir creates the .forge directory structure in the given project
// directory. Called when the TUI starts up.
//
// Structure created:
// .forge/
// ├── logs/    <- run log
// └── state/   <- session database
func InitForgeDir(projectDir string) error {
	forgeDir := filepath.Join(projectDir, ForgeDir)
	dirs := []string{
		filepath.Join(forgeDir, "logs"),
		filepath.Join(forgeDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(forgeDir, "config.yaml"))
}

// NewConfig creates a Config populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		ForgeProjectDir: filepath.Join(projectDir, ForgeDir),
		Project:         defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ForgeProjectDir, "logs")
}

// StateDir returns the path to the state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.ForgeProjectDir, "state")
}

// SessionDBPath returns the on-disk location of the session database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.StateDir(), "session.db")
}

// ProjectConfigPath returns the on-disk location of the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ForgeProjectDir, "config.yaml")
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Service: ServiceConfig{},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Service.URL = strings.TrimSpace(pc.Service.URL)
	pc.Service.APIKey = strings.TrimSpace(pc.Service.APIKey)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Service.CombatTimeoutSeconds < 0 {
		return fmt.Errorf("service.combat_timeout_seconds must be >= 0")
	}
	if pc.Service.GenerationTimeoutSeconds < 0 {
		return fmt.Errorf("service.generation_timeout_seconds must be >= 0")
	}
	if pc.Service.URL != "" && !strings.Contains(pc.Service.URL, "://") {
		return fmt.Errorf("service.url must be a full URL, got %q", pc.Service.URL)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
