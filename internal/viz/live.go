package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/metrics"
	"github.com/san-kum/starfield/internal/sim"
	"github.com/san-kum/starfield/internal/spectator"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	// Cores are much larger than any star.
	coreSize = 2
)

// Source is what the dashboard drives. Reseed replaces the bodies with a
// freshly seeded scene of the given size.
type Source interface {
	Driver() *sim.Driver
	Reseed(numBodies int) error
}

type Options struct {
	Title string
	// RenderBodies limits drawing to the first k bodies; 0 draws all.
	RenderBodies int
	// Extent is the half-width of the top-down view in world units.
	Extent       float32
	StepsPerTick int
	// EnergyEvery samples the O(N^2) energy every n-th step.
	EnergyEvery int
	Theme       string
}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live dashboard.
type Model struct {
	src    Source
	opts   Options
	ctx    context.Context
	canvas *Canvas
	camera *Camera

	frame         sim.Frame
	energy        *metrics.Energy
	energyHistory []float64
	stepHistory   []float64
	running       bool
	showHelp      bool
	err           error
}

func NewModel(ctx context.Context, src Source, opts Options) Model {
	if opts.StepsPerTick <= 0 {
		opts.StepsPerTick = 1
	}
	if opts.Title == "" {
		opts.Title = "starfield"
	}
	if opts.Theme != "" {
		SetTheme(opts.Theme)
	}
	m := Model{
		src:           src,
		opts:          opts,
		ctx:           ctx,
		canvas:        NewCanvas(width, height),
		camera:        NewCamera(opts.Extent),
		energy:        metrics.NewEnergy(src.Driver().Params(), opts.EnergyEvery),
		energyHistory: make([]float64, 0, historyCapacity),
		stepHistory:   make([]float64, 0, historyCapacity),
		running:       true,
	}
	m.draw()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		if m.running && m.err == nil {
			for i := 0; i < m.opts.StepsPerTick; i++ {
				if !m.step() {
					break
				}
			}
		}
		m.draw()
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tracker := m.src.Driver().Tracker()
	nudge := m.camera.Extent / m.camera.Zoom * 0.05

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case ".":
		if !m.running {
			m.step()
		}
	case "v":
		m.camera.Toggle()
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "f":
		modes := spectator.ModeNames()
		next, _ := spectator.ParseMode(modes[(int(tracker.Mode())+1)%len(modes)])
		tracker.Follow(next, tracker.Pivot())
	case "up", "k":
		tracker.Move(mgl32.Vec3{0, nudge, 0}, mgl32.Vec3{})
	case "down", "j":
		tracker.Move(mgl32.Vec3{0, -nudge, 0}, mgl32.Vec3{})
	case "left", "h":
		tracker.Move(mgl32.Vec3{-nudge, 0, 0}, mgl32.Vec3{})
	case "right", "l":
		tracker.Move(mgl32.Vec3{nudge, 0, 0}, mgl32.Vec3{})
	case "x":
		st := tracker.State()
		st.Velocity = mgl32.Vec4{}
		tracker.Set(st)
	case "r":
		m.reseed(m.src.Driver().Params().NumBodies)
	case "n":
		m.reseed(m.src.Driver().Params().NumBodies * 2)
	case "N":
		m.reseed(max(1, m.src.Driver().Params().NumBodies/2))
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
	m.draw()
	return m, nil
}

// step advances the driver once and reports whether stepping may go on.
func (m *Model) step() bool {
	frame, err := m.src.Driver().Step(m.ctx)
	if err != nil {
		m.err = err
		m.running = false
		return false
	}
	m.frame = frame

	m.energy.Observe(frame)
	m.energyHistory = appendCapped(m.energyHistory, m.energy.Value())
	m.stepHistory = appendCapped(m.stepHistory, float64(frame.Elapsed.Microseconds())/1000)
	return true
}

func (m *Model) reseed(n int) {
	if err := m.src.Reseed(n); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.frame = sim.Frame{}
	m.energy = metrics.NewEnergy(m.src.Driver().Params(), m.opts.EnergyEvery)
	m.energyHistory = m.energyHistory[:0]
	m.stepHistory = m.stepHistory[:0]
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// draw renders the visible bodies around the spectator into the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	w, h := m.canvas.Pixels()
	sp := m.src.Driver().Tracker().State()
	eye := sp.Position.Vec3()
	project := m.camera.Projector(eye, mgl32.Vec3{}, w, h)

	k := m.opts.RenderBodies
	m.src.Driver().Store().Read(func(b dynamo.Buffer) {
		visible := sim.Frame{Positions: b.Positions}.Visible(k)
		for _, p := range visible {
			x, y, ok := project(p.Vec3())
			if !ok {
				continue
			}
			if p[3] >= coreSize {
				m.canvas.Blob(x, y, 1)
			} else {
				m.canvas.Set(x, y)
			}
		}
	})

	if m.camera.View == TopDown {
		cx, cy := w/2, h/2
		m.canvas.DrawLine(cx-2, cy, cx+2, cy)
		m.canvas.DrawLine(cx, cy-2, cx, cy+2)
	}
}

func (m Model) View() string {
	p := newPalette(CurrentTheme)
	d := m.src.Driver()
	params := d.Params()
	tracker := d.Tracker()
	sp := tracker.State()

	var s strings.Builder
	s.WriteString(p.header.Render(strings.ToUpper(m.opts.Title)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(p.failed.Render("ERROR") + " " + p.value.Render(m.err.Error()) + "\n\n")
	case m.running:
		s.WriteString(p.running.Render("RUNNING") + "\n\n")
	default:
		s.WriteString(p.paused.Render("PAUSED") + "\n\n")
	}

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(p.graph.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(p.label.Render(label) + p.value.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.frame.Step))
	row("Time", fmt.Sprintf("%.5f", m.frame.Time))
	row("Bodies", fmt.Sprintf("%d", params.NumBodies))
	row("Backend", d.Backend().Name())
	row("Blocks", ProgressBar(d.Progress(), 20))
	row("Step ms", Sparkline(m.stepHistory, 20))
	row("Anomalies", fmt.Sprintf("%d", m.frame.Anomalies))
	row("Track", tracker.Mode().String())
	row("View", fmt.Sprintf("%s x%.2f", m.camera.View, m.camera.Zoom))
	row("Spectator", fmt.Sprintf("%.3f %.3f %.3f", sp.Position[0], sp.Position[1], sp.Position[2]))
	if n := tracker.Clamped(); n > 0 {
		row("Clamped", fmt.Sprintf("%d", n))
	}

	s.WriteString(p.help.Render("─────────────────────\nSP:Pause .:Step Q:Quit\nV:View +/-:Zoom F:Follow\nhjkl:Move X:Stop T:Theme\nR:Reseed N/n:Bodies ?:Help"))

	canvasView := p.canvas.Render(m.canvas.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, p.stats.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  .        - Single step when paused  ║
║  V        - Top-down / eye view      ║
║  + / -    - Zoom                     ║
║  F        - Cycle follow mode        ║
║  h j k l  - Nudge the spectator      ║
║  X        - Stop the spectator       ║
║  R        - Reseed                   ║
║  n / N    - Double / halve bodies    ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run shows the dashboard until the user quits.
func Run(ctx context.Context, src Source, opts Options) error {
	_, err := tea.NewProgram(NewModel(ctx, src, opts), tea.WithAltScreen()).Run()
	return err
}
