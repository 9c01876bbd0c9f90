// cmd/forge/main.go
//
// Entry point for the Encounter Forge TUI.
//
// Flow:
// 1. Initialize the .forge directory in the working directory
// 2. Open the session database and wire the registry to the service client
// 3. Launch the TUI; a previously open encounter is restored without any
//    service call

package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/encounter-forge/internal/config"
	"github.com/kingrea/encounter-forge/internal/logbook"
	"github.com/kingrea/encounter-forge/internal/protocol"
	"github.com/kingrea/encounter-forge/internal/registry"
	"github.com/kingrea/encounter-forge/internal/session"
	"github.com/kingrea/encounter-forge/internal/tui"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitForgeDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .forge directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := session.Open(cfg.SessionDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "forge.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening logbook: %v\n", err)
		os.Exit(1)
	}
	defer lb.Close()

	client := protocol.NewClient(protocol.SettingsFromConfig(cfg))
	reg := registry.New(client, store)

	p := tea.NewProgram(
		tui.NewApp(cfg, reg, lb),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
