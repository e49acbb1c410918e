package viz

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/bodies"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/models"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/sim"
	"github.com/san-kum/starfield/internal/spectator"
)

type fakeSource struct {
	driver  *sim.Driver
	reseeds []int
}

func (f *fakeSource) Driver() *sim.Driver { return f.driver }

func (f *fakeSource) Reseed(n int) error {
	store, err := seeded(n)
	if err != nil {
		return err
	}
	f.reseeds = append(f.reseeds, n)
	return f.driver.Reset(store)
}

func seeded(n int) (*bodies.Store, error) {
	store, err := bodies.New(n)
	if err != nil {
		return nil, err
	}
	model, _ := models.Lookup("coplanar")
	var buildErr error
	store.Seed(func(b dynamo.Buffer) {
		_, buildErr = model.Build(b, models.Scene{ClusterScale: 0.035, VelocityScale: 4000, Seed: 1})
	})
	return store, buildErr
}

func newSource(t *testing.T) *fakeSource {
	t.Helper()
	store, err := seeded(128)
	if err != nil {
		t.Fatal(err)
	}
	planner, err := partition.New(32)
	if err != nil {
		t.Fatal(err)
	}
	params := dynamo.SimParams{Timestep: 0.000256, Damping: 1, SofteningSqr: 0.128, NumBodies: 128, Gravity: 1}
	tracker := spectator.New(dynamo.Tracking{Position: mgl32.Vec4{0, 0, 0.7, 0}})
	d, err := sim.New(store, params, planner, sim.WithTracker(tracker))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeSource{driver: d}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCanvasSetAndString(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)

	if got := c.String(); got != string([]rune{0x2801, 0x2880}) {
		t.Errorf("canvas = %q", got)
	}
	if c.Lit() != 2 {
		t.Errorf("lit = %d, want 2", c.Lit())
	}
	c.Clear()
	if c.Lit() != 0 {
		t.Error("clear left pixels lit")
	}
}

func TestTopDownCentresSpectator(t *testing.T) {
	cam := NewCamera(1)
	project := cam.Projector(mgl32.Vec3{5, 5, 9}, mgl32.Vec3{}, 100, 80)

	x, y, ok := project(mgl32.Vec3{5, 5, 0})
	if !ok || x != 50 || y != 40 {
		t.Errorf("centre = (%d, %d, %v)", x, y, ok)
	}
	x, y, ok = project(mgl32.Vec3{5.5, 5.5, 0})
	if !ok || x != 70 || y != 20 {
		t.Errorf("offset = (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok := project(mgl32.Vec3{7, 5, 0}); ok {
		t.Error("point beyond extent visible")
	}

	cam.ZoomOut()
	project = cam.Projector(mgl32.Vec3{5, 5, 9}, mgl32.Vec3{}, 100, 80)
	if _, _, ok := project(mgl32.Vec3{6.3, 5, 0}); !ok {
		t.Error("zooming out did not widen the view")
	}
}

func TestEyeViewLooksAtTarget(t *testing.T) {
	cam := NewCamera(1)
	cam.Toggle()
	if cam.View != Eye {
		t.Fatal("toggle did not switch to eye view")
	}
	project := cam.Projector(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, 100, 80)

	x, y, ok := project(mgl32.Vec3{})
	if !ok || x != 50 || y != 40 {
		t.Errorf("target = (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok := project(mgl32.Vec3{0, 0, 20}); ok {
		t.Error("point behind the eye visible")
	}
	x, _, ok = project(mgl32.Vec3{1, 0, 0})
	if !ok || x <= 50 {
		t.Errorf("+x projected to %d", x)
	}
}

func TestSparklineAndProgress(t *testing.T) {
	if got := Sparkline([]float64{0, 1}, 4); got != "▁█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := Sparkline(nil, 3); got != "───" {
		t.Errorf("empty sparkline = %q", got)
	}
	if got := ProgressBar(0.5, 4); got != "██░░" {
		t.Errorf("progress = %q", got)
	}
	if got := ProgressBar(2, 2); got != "██" {
		t.Errorf("overfull progress = %q", got)
	}
}

func TestDashboardSteps(t *testing.T) {
	src := newSource(t)
	m := NewModel(context.Background(), src, Options{Title: "coplanar", StepsPerTick: 3, Extent: 0.5})

	next, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick did not schedule the next tick")
	}
	m = next.(Model)
	if m.frame.Step != 3 {
		t.Errorf("step = %d, want 3", m.frame.Step)
	}
	if len(m.energyHistory) != 3 {
		t.Errorf("energy history = %d, want 3", len(m.energyHistory))
	}
	if m.canvas.Lit() == 0 {
		t.Error("no bodies drawn")
	}
	if view := m.View(); !strings.Contains(view, "COPLANAR") || !strings.Contains(view, "RUNNING") {
		t.Errorf("view missing header or status:\n%s", view)
	}

	next, _ = m.Update(key(" "))
	m = next.(Model)
	next, _ = m.Update(TickMsg(time.Now()))
	m = next.(Model)
	if m.frame.Step != 3 {
		t.Errorf("paused dashboard stepped to %d", m.frame.Step)
	}
	next, _ = m.Update(key("."))
	m = next.(Model)
	if m.frame.Step != 4 {
		t.Errorf("single step gave %d, want 4", m.frame.Step)
	}
}

func TestDashboardKeys(t *testing.T) {
	src := newSource(t)
	m := NewModel(context.Background(), src, Options{Extent: 1})
	tracker := src.driver.Tracker()

	next, _ := m.Update(key("f"))
	m = next.(Model)
	if tracker.Mode() != spectator.FollowCore {
		t.Errorf("mode = %v, want core", tracker.Mode())
	}

	next, _ = m.Update(key("v"))
	m = next.(Model)
	if m.camera.View != Eye {
		t.Error("v did not switch views")
	}

	next, _ = m.Update(key("n"))
	m = next.(Model)
	if len(src.reseeds) != 1 || src.reseeds[0] != 256 {
		t.Errorf("reseeds = %v", src.reseeds)
	}
	if src.driver.Params().NumBodies != 256 {
		t.Errorf("bodies = %d", src.driver.Params().NumBodies)
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestPickerLaunchesModel(t *testing.T) {
	src := newSource(t)
	var launched string
	p := NewPicker(context.Background(), func(name string) (Source, Options, error) {
		launched = name
		return src, Options{Title: name}, nil
	})

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("starting the dashboard returned no tick")
	}
	if want := models.Names()[1]; launched != want {
		t.Errorf("launched %q, want %q", launched, want)
	}
	if !strings.Contains(p.View(), strings.ToUpper(launched)) {
		t.Error("dashboard not shown after launch")
	}

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !strings.Contains(p.View(), "STARFIELD") {
		t.Error("esc did not return to the menu")
	}
}
