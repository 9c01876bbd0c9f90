// internal/tui/form.go
//
// The request form is the single input slot: one bubbles textinput per
// schema field for the chosen variant. The form performs no field-level
// validation of its own; the registry's schema check is the gate.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/encounter-forge/internal/encounter"
)

type formField struct {
	label       string
	placeholder string
	apply       func(*encounter.Request, string)
}

func intValue(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

// fieldsFor returns the input fields for a variant, mirroring its schema's
// required set plus the optional extras the service accepts.
func fieldsFor(v encounter.Variant) []formField {
	switch v {
	case encounter.VariantCombat:
		return []formField{
			{label: "Party level", placeholder: "1-20", apply: func(r *encounter.Request, s string) { r.PartyLevel = intValue(s) }},
			{label: "Party size", placeholder: "4", apply: func(r *encounter.Request, s string) { r.PartySize = intValue(s) }},
			{label: "Difficulty", placeholder: "easy / medium / hard / deadly", apply: func(r *encounter.Request, s string) { r.Difficulty = strings.TrimSpace(s) }},
		}
	case encounter.VariantInfluence:
		return []formField{
			{label: "Context", placeholder: "Who must be swayed, and why?", apply: func(r *encounter.Request, s string) { r.Context = s }},
		}
	case encounter.VariantResearch:
		return []formField{
			{label: "Context", placeholder: "What are the characters digging into?", apply: func(r *encounter.Request, s string) { r.Context = s }},
		}
	case encounter.VariantChase:
		return []formField{
			{label: "Context", placeholder: "Who is chasing whom, and where?", apply: func(r *encounter.Request, s string) { r.Context = s }},
			{label: "Obstacle count", placeholder: "5", apply: func(r *encounter.Request, s string) { r.Obstacles = intValue(s) }},
		}
	case encounter.VariantDungeon:
		return []formField{
			{label: "Theme", placeholder: "flooded dwarven mine", apply: func(r *encounter.Request, s string) { r.Theme = strings.TrimSpace(s) }},
			{label: "Room count", placeholder: "6", apply: func(r *encounter.Request, s string) { r.Rooms = intValue(s) }},
		}
	case encounter.VariantInfiltration:
		return []formField{
			{label: "Target location", placeholder: "the baron's keep", apply: func(r *encounter.Request, s string) { r.Location = strings.TrimSpace(s) }},
		}
	case encounter.VariantLair:
		return []formField{
			{label: "Creature name", placeholder: "adult black dragon", apply: func(r *encounter.Request, s string) { r.Creature = strings.TrimSpace(s) }},
		}
	case encounter.VariantTravel:
		return []formField{
			{label: "Terrain", placeholder: "frozen tundra", apply: func(r *encounter.Request, s string) { r.Terrain = strings.TrimSpace(s) }},
			{label: "Travel days", placeholder: "3", apply: func(r *encounter.Request, s string) { r.Days = intValue(s) }},
		}
	default:
		return nil
	}
}

// requestForm collects the fields for one variant.
type requestForm struct {
	variant encounter.Variant
	fields  []formField
	inputs  []textinput.Model
	focus   int
}

func newRequestForm(v encounter.Variant) *requestForm {
	fields := fieldsFor(v)
	inputs := make([]textinput.Model, len(fields))
	for i, field := range fields {
		input := textinput.New()
		input.Placeholder = field.placeholder
		input.Prompt = "> "
		input.CharLimit = 512
		if i == 0 {
			input.Focus()
		}
		inputs[i] = input
	}
	return &requestForm{variant: v, fields: fields, inputs: inputs}
}

// submitFormMsg signals that the form's last field was confirmed.
type submitFormMsg struct{ request encounter.Request }

// Update routes input to the focused field. Enter advances; confirming the
// last field emits the assembled request.
func (f *requestForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			if f.focus == len(f.inputs)-1 {
				request := f.Request()
				return func() tea.Msg { return submitFormMsg{request: request} }
			}
			f.setFocus(f.focus + 1)
			return nil
		case "tab", "down":
			f.setFocus((f.focus + 1) % len(f.inputs))
			return nil
		case "shift+tab", "up":
			f.setFocus((f.focus - 1 + len(f.inputs)) % len(f.inputs))
			return nil
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *requestForm) setFocus(index int) {
	f.inputs[f.focus].Blur()
	f.focus = index
	f.inputs[f.focus].Focus()
}

// Focus re-activates the current field. Used when the existing form is
// brought to the foreground instead of opening a duplicate.
func (f *requestForm) Focus() {
	f.inputs[f.focus].Focus()
}

// Request assembles the typed request from the current field values.
func (f *requestForm) Request() encounter.Request {
	request := encounter.Request{Variant: f.variant}
	for i, field := range f.fields {
		field.apply(&request, f.inputs[i].Value())
	}
	return request
}

func (f *requestForm) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("New %s encounter", f.variant.FriendlyName()))
	rows := []string{title, ""}
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	for i, field := range f.fields {
		rows = append(rows, labelStyle.Render(field.label), f.inputs[i].View())
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render("Enter → next/submit    Tab → cycle fields    Esc → cancel")
	rows = append(rows, hint)
	return strings.Join(rows, "\n")
}
