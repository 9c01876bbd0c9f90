// internal/tui/app.go
//
// Main TUI for Encounter Forge, following The Elm Architecture:
// model -> update -> view. The app is a thin renderer over the registry:
// it owns no session state of its own, and the registry's singleton
// discipline guarantees at most one form and one encounter view exist.

package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/encounter-forge/internal/config"
	"github.com/kingrea/encounter-forge/internal/encounter"
	"github.com/kingrea/encounter-forge/internal/logbook"
	"github.com/kingrea/encounter-forge/internal/protocol"
	"github.com/kingrea/encounter-forge/internal/registry"
)

// appState represents which "screen" we're on.
type appState int

const (
	stateMenu       appState = iota // Variant picker
	stateForm                       // Request form (the input slot)
	stateRequesting                 // One generation call in flight
	stateDisplay                    // Encounter view (the display slot)
)

// App is the main application model.
type App struct {
	state    appState
	config   *config.Config
	registry *registry.Registry
	logbook  *logbook.Logbook

	mainMenu  list.Model
	form      *requestForm
	artifact  *encounter.Artifact
	statusMsg string

	width  int
	height int
}

// menuItem implements list.Item for the variant picker.
type menuItem struct {
	variant encounter.Variant
	title   string
	desc    string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

var menuDescriptions = map[encounter.Variant]string{
	encounter.VariantCombat:       "A balanced fight with tactics and win conditions",
	encounter.VariantInfluence:    "A social encounter around persuasion and leverage",
	encounter.VariantResearch:     "Leads, libraries, and what the digging uncovers",
	encounter.VariantChase:        "A pursuit with obstacles and escalating stakes",
	encounter.VariantDungeon:      "A themed site with connected rooms",
	encounter.VariantInfiltration: "Getting in, getting out, and what goes wrong",
	encounter.VariantLair:         "A creature's home turf and its defenses",
	encounter.VariantTravel:       "Overland legs with hazards and discoveries",
}

// NewApp creates the application model and restores the previous session.
// A restored artifact reopens the encounter view without any service call.
func NewApp(cfg *config.Config, reg *registry.Registry, lb *logbook.Logbook) *App {
	items := make([]list.Item, 0, len(encounter.Variants()))
	for _, v := range encounter.Variants() {
		items = append(items, menuItem{
			variant: v,
			title:   v.FriendlyName(),
			desc:    menuDescriptions[v],
		})
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⚔ ENCOUNTER FORGE"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	app := &App{
		state:    stateMenu,
		config:   cfg,
		registry: reg,
		logbook:  lb,
		mainMenu: mainMenu,
	}
	if artifact, err := reg.Restore(); err != nil {
		app.statusMsg = fmt.Sprintf("Session restore failed: %v", err)
		app.logError("Restore failed: %v", err)
	} else if artifact != nil {
		app.artifact = artifact
		app.state = stateDisplay
		app.logInfo("Session restored · %s (%s)", artifact.DisplayTitle(), artifact.Variant)
	}
	return app
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Info(format, args...)
	}
}

func (a *App) logError(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Error(format, args...)
	}
}

// generateResultMsg carries the outcome of a Submit or Regenerate command.
type generateResultMsg struct {
	artifact *encounter.Artifact
	err      error
}

func (a *App) submitCmd(req encounter.Request) tea.Cmd {
	return func() tea.Msg {
		artifact, err := a.registry.Submit(context.Background(), req)
		return generateResultMsg{artifact: artifact, err: err}
	}
}

func (a *App) regenerateCmd() tea.Cmd {
	return func() tea.Msg {
		artifact, err := a.registry.Regenerate(context.Background())
		return generateResultMsg{artifact: artifact, err: err}
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		return a, nil

	case submitFormMsg:
		if err := encounter.ValidateRequest(msg.request); err != nil {
			// Stay on the form so the user can fix the missing field.
			a.statusMsg = errorNotice(err)
			a.logError("Validation failed: %v", err)
			return a, nil
		}
		a.state = stateRequesting
		a.statusMsg = fmt.Sprintf("Requesting %s encounter…", msg.request.Variant.FriendlyName())
		a.logInfo("Generation requested · %s", msg.request.Variant)
		return a, a.submitCmd(msg.request)

	case generateResultMsg:
		if msg.err != nil {
			a.statusMsg = errorNotice(msg.err)
			a.logError("Generation failed: %v", msg.err)
			// The registry already returned to Idle; any previous
			// artifact stays persisted for a later restore.
			a.state = stateMenu
			a.form = nil
			a.artifact = nil
			return a, nil
		}
		a.artifact = msg.artifact
		a.form = nil
		a.state = stateDisplay
		a.statusMsg = ""
		a.logInfo("Encounter ready · %s (%s)", msg.artifact.DisplayTitle(), msg.artifact.Variant)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.routeToFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "q":
		if a.state == stateMenu {
			return a, tea.Quit
		}
	case "esc":
		switch a.state {
		case stateForm:
			a.form = nil
			a.state = stateMenu
			a.statusMsg = ""
			return a, nil
		case stateDisplay:
			if err := a.registry.Close(); err != nil {
				a.statusMsg = fmt.Sprintf("Close failed: %v", err)
				return a, nil
			}
			a.logInfo("Encounter view closed")
			a.artifact = nil
			a.state = stateMenu
			a.statusMsg = ""
			return a, nil
		}
	case "r":
		if a.state == stateDisplay {
			if !a.registry.CanRegenerate() {
				a.statusMsg = errorNotice(registry.ErrNothingToRegenerate)
				return a, nil
			}
			a.state = stateRequesting
			a.statusMsg = "Regenerating…"
			a.logInfo("Regeneration requested")
			return a, a.regenerateCmd()
		}
	case "enter":
		if a.state == stateMenu {
			return a.handleMenuSelection()
		}
	}
	return a.routeToFocused(msg)
}

func (a *App) handleMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	// Singleton input slot: if a form already exists, bring it to the
	// foreground rather than opening a second one.
	if a.form != nil {
		a.form.Focus()
		a.state = stateForm
		return a, nil
	}
	a.form = newRequestForm(item.variant)
	a.state = stateForm
	a.statusMsg = ""
	a.logInfo("Menu · %s selected", item.variant)
	return a, nil
}

func (a *App) routeToFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch a.state {
	case stateMenu:
		var cmd tea.Cmd
		a.mainMenu, cmd = a.mainMenu.Update(msg)
		return a, cmd
	case stateForm:
		if a.form != nil {
			return a, a.form.Update(msg)
		}
	}
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateMenu:
		content = a.mainMenu.View()
	case stateForm:
		if a.form != nil {
			content = a.form.View()
		}
	case stateRequesting:
		content = "Generating… creative variants can take up to five minutes.\n\nPress Ctrl+C to quit."
	case stateDisplay:
		content = renderArtifact(a.artifact, max(40, width-8))
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⚔ ENCOUNTER FORGE")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(30, width-2)).
		Render(content)
	sections := []string{header, box}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(5)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("LOG")
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

// errorNotice turns a classified error into a short user-facing message.
// Generation failures suggest a retry since the deadline-based causes are
// usually transient.
func errorNotice(err error) string {
	var validationErr *encounter.ValidationError
	if errors.As(err, &validationErr) {
		return fmt.Sprintf("Invalid request: %s is required.", validationErr.Field)
	}
	if genErr, ok := protocol.AsGenerationError(err); ok {
		switch genErr.Kind {
		case protocol.KindTimeout:
			return "Generation timed out. The service may be busy; try again."
		case protocol.KindTransport:
			return fmt.Sprintf("Could not reach the generation service (%s). Try again shortly.", genErr.Message)
		case protocol.KindRejected:
			return fmt.Sprintf("The service rejected the request: %s. Try again.", genErr.Message)
		}
	}
	if errors.Is(err, registry.ErrNothingToRegenerate) {
		return "Nothing to regenerate: no request was made this session."
	}
	if errors.Is(err, registry.ErrRequestInFlight) {
		return "A generation is already running."
	}
	return err.Error()
}

// renderArtifact renders a normalized encounter for the display slot.
func renderArtifact(artifact *encounter.Artifact, width int) string {
	if artifact == nil {
		return "No encounter loaded."
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(artifact.DisplayTitle())
	meta := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(fmt.Sprintf("%s · generated %s", artifact.Variant.FriendlyName(), artifact.GeneratedAt.Format("2006-01-02 15:04")))
	rows := []string{title, meta, ""}

	if artifact.Sections != nil {
		s := artifact.Sections
		rows = append(rows,
			sectionBlock("Scene", s.Scene, width),
			sectionBlock("Monsters", s.Monsters, width),
			sectionBlock("Tactics", s.Tactics, width),
			sectionBlock("Win Conditions", s.WinConditions, width),
		)
		if s.XPTotal > 0 {
			rows = append(rows, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Total XP: %d", s.XPTotal)))
		}
	} else {
		if artifact.Summary != "" {
			rows = append(rows, sectionBlock("Summary", artifact.Summary, width))
		}
		rows = append(rows, sectionBlock("Details", prettyPayload(artifact.Payload), width))
	}

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render("r → regenerate    Esc → close")
	rows = append(rows, hint)
	return strings.Join(rows, "\n")
}

func sectionBlock(label, body string, width int) string {
	head := lipgloss.NewStyle().Bold(true).Render(label)
	text := lipgloss.NewStyle().Width(max(20, width)).Render(strings.TrimSpace(body))
	return head + "\n" + text + "\n"
}

func prettyPayload(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "(empty payload)"
	}
	var buf map[string]any
	if err := json.Unmarshal(payload, &buf); err != nil {
		return string(payload)
	}
	encoded, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return string(payload)
	}
	return string(encoded)
}
