package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/starfield/internal/models"
)

// Launcher builds a runnable scene for the chosen model.
type Launcher func(model string) (Source, Options, error)

type pickerState int

const (
	stateMenu pickerState = iota
	stateSim
)

type picker struct {
	ctx    context.Context
	launch Launcher
	state  pickerState
	cursor int
	models []models.Model
	err    error
	live   Model
}

func NewPicker(ctx context.Context, launch Launcher) tea.Model {
	return picker{ctx: ctx, launch: launch, models: models.All()}
}

func (m picker) Init() tea.Cmd { return nil }

func (m picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			m.state = stateMenu
			return m, nil
		}
		live, cmd := m.live.Update(msg)
		m.live = live.(Model)
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(m.models)) % len(m.models)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(m.models)
	case "enter", " ":
		src, opts, err := m.launch(m.models[m.cursor].Name)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.live = NewModel(m.ctx, src, opts)
		m.state = stateSim
		return m, m.live.Init()
	}
	return m, nil
}

func (m picker) View() string {
	if m.state == stateSim {
		return m.live.View()
	}

	p := newPalette(CurrentTheme)
	var b strings.Builder
	b.WriteString("\n\n    " + p.header.Render("STARFIELD") + "\n")
	b.WriteString("    " + p.label.Render("galaxy collisions") + "\n\n")
	for i, model := range m.models {
		name := fmt.Sprintf("%-18s", model.Name)
		if i == m.cursor {
			b.WriteString("    " + p.cursor.Render("▸ "+name) + " " + p.desc.Render(model.Description) + "\n")
		} else {
			b.WriteString("      " + p.item.Render(name) + " " + p.label.Render(model.Description) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + p.failed.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + p.help.Render("j/k navigate  enter start  esc back  q quit") + "\n")
	return b.String()
}

// RunInteractive shows the model picker and then the dashboard.
func RunInteractive(ctx context.Context, launch Launcher) error {
	_, err := tea.NewProgram(NewPicker(ctx, launch), tea.WithAltScreen()).Run()
	return err
}
