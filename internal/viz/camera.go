package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type View int

const (
	// TopDown looks down the z axis with the spectator at the centre.
	TopDown View = iota
	// Eye is a perspective view from the spectator towards its look point.
	Eye
)

func (v View) String() string {
	if v == Eye {
		return "eye"
	}
	return "top"
}

// Camera maps world positions onto canvas sub-pixels.
type Camera struct {
	View   View
	Zoom   float32
	Extent float32
	FOV    float32
}

// NewCamera shows extent world units from the centre to the nearest canvas
// edge at zoom 1.
func NewCamera(extent float32) *Camera {
	if !(extent > 0) {
		extent = 1
	}
	return &Camera{Zoom: 1, Extent: extent, FOV: mgl32.DegToRad(60)}
}

func (c *Camera) ZoomIn()  { c.Zoom = mgl32.Clamp(c.Zoom*1.25, 0.01, 100) }
func (c *Camera) ZoomOut() { c.Zoom = mgl32.Clamp(c.Zoom/1.25, 0.01, 100) }

func (c *Camera) Toggle() {
	if c.View == TopDown {
		c.View = Eye
	} else {
		c.View = TopDown
	}
}

// Projector returns a function placing world points on a w x h pixel canvas
// seen from eye. ok is false for points off the canvas or behind the eye.
func (c *Camera) Projector(eye, look mgl32.Vec3, w, h int) func(p mgl32.Vec3) (x, y int, ok bool) {
	if c.View == Eye {
		return c.perspective(eye, look, w, h)
	}

	scale := float32(min(w, h)) / 2 / (c.Extent / c.Zoom)
	cx, cy := float32(w)/2, float32(h)/2
	return func(p mgl32.Vec3) (int, int, bool) {
		rel := p.Sub(eye)
		fx := cx + rel[0]*scale
		fy := cy - rel[1]*scale
		return toPixel(fx, fy, w, h)
	}
}

func (c *Camera) perspective(eye, look mgl32.Vec3, w, h int) func(p mgl32.Vec3) (int, int, bool) {
	if look.ApproxEqual(eye) {
		look = eye.Sub(mgl32.Vec3{0, 0, 1})
	}
	up := mgl32.Vec3{0, 1, 0}
	if look.Sub(eye).Normalize().Cross(up).Len() < 1e-3 {
		up = mgl32.Vec3{0, 0, 1}
	}

	dist := look.Sub(eye).Len()
	fov := mgl32.Clamp(c.FOV/c.Zoom, mgl32.DegToRad(0.5), mgl32.DegToRad(170))
	proj := mgl32.Perspective(fov, float32(w)/float32(h), dist*1e-3, dist*1e3)
	mvp := proj.Mul4(mgl32.LookAtV(eye, look, up))

	return func(p mgl32.Vec3) (int, int, bool) {
		clip := mvp.Mul4x1(p.Vec4(1))
		if clip[3] <= 0 {
			return 0, 0, false
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		fx := (ndc[0] + 1) / 2 * float32(w)
		fy := (1 - ndc[1]) / 2 * float32(h)
		return toPixel(fx, fy, w, h)
	}
}

func toPixel(fx, fy float32, w, h int) (int, int, bool) {
	if math.IsNaN(float64(fx)) || math.IsNaN(float64(fy)) {
		return 0, 0, false
	}
	if fx < 0 || fy < 0 || fx >= float32(w) || fy >= float32(h) {
		return 0, 0, false
	}
	return int(fx), int(fy), true
}
