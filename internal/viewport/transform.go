// Package viewport maps logical canvas coordinates to screen pixels.
package viewport

import (
	"math"

	"github.com/rendis/attackchain/pkg/schema"
)

const (
	MinScale = 0.3
	MaxScale = 2.0

	// FitScale is the preferred scale after fitting content.
	FitScale = 0.8

	// WheelFactor converts a wheel deltaY into a zoom delta.
	WheelFactor = 0.001
)

// Transform is the pan/zoom state. Scale is always within [MinScale, MaxScale].
type Transform struct {
	scale  float64
	offset schema.Point
}

// New returns an identity transform.
func New() *Transform {
	return &Transform{scale: 1}
}

// State returns a snapshot of the transform.
func (t *Transform) State() schema.ViewportState {
	return schema.ViewportState{Scale: t.scale, Offset: t.offset}
}

// Scale returns the current zoom factor.
func (t *Transform) Scale() float64 { return t.scale }

// Set restores a saved state, clamping the scale.
func (t *Transform) Set(s schema.ViewportState) {
	t.scale = clamp(s.Scale)
	t.offset = s.Offset
}

// Zoom changes the scale by delta while keeping the logical point under
// pivot (screen pixels) fixed on screen. Returns false when clamping left
// the scale unchanged; the offset is then untouched as well.
func (t *Transform) Zoom(delta float64, pivot schema.Point) bool {
	next := clamp(t.scale + delta)
	if next == t.scale {
		return false
	}
	k := 1 - next/t.scale
	t.offset = t.offset.Add(pivot.Sub(t.offset).Scale(k))
	t.scale = next
	return true
}

// ZoomStep applies a mouse-wheel tick: scrolling up zooms in.
func (t *Transform) ZoomStep(wheelDeltaY float64, pivot schema.Point) bool {
	return t.Zoom(-wheelDeltaY*WheelFactor, pivot)
}

// Pan shifts the offset by a screen-space delta.
func (t *Transform) Pan(dx, dy float64) {
	t.offset = t.offset.Add(schema.Point{X: dx, Y: dy})
}

// Reset restores scale 1 and zero offset.
func (t *Transform) Reset() {
	t.scale = 1
	t.offset = schema.Point{}
}

// FitToContent centers the bounding box of all node footprints in a
// viewport of the given size, at FitScale or smaller if the box would
// not fit. An empty node list resets the view.
func (t *Transform) FitToContent(nodes []schema.Node, view schema.Size) {
	if len(nodes) == 0 || view.Width <= 0 || view.Height <= 0 {
		t.Reset()
		return
	}
	box := Bounds(nodes, schema.NodeFootprint)
	w := box.Max.X - box.Min.X
	h := box.Max.Y - box.Min.Y

	scale := math.Min(FitScale, math.Min(view.Width/w, view.Height/h))
	scale = clamp(scale)

	center := schema.Point{X: box.Min.X + w/2, Y: box.Min.Y + h/2}
	t.scale = scale
	t.offset = schema.Point{
		X: view.Width/2 - center.X*scale,
		Y: view.Height/2 - center.Y*scale,
	}
}

// ScreenToLogical converts a screen point into canvas coordinates.
func (t *Transform) ScreenToLogical(p schema.Point) schema.Point {
	return p.Sub(t.offset).Scale(1 / t.scale)
}

// LogicalToScreen converts a canvas point into screen pixels.
func (t *Transform) LogicalToScreen(p schema.Point) schema.Point {
	return p.Scale(t.scale).Add(t.offset)
}

// Bounds returns the rectangle covering every node's footprint.
func Bounds(nodes []schema.Node, footprint schema.Size) schema.Rect {
	r := schema.Rect{
		Min: schema.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: schema.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, n := range nodes {
		r.Min.X = math.Min(r.Min.X, n.Position.X)
		r.Min.Y = math.Min(r.Min.Y, n.Position.Y)
		r.Max.X = math.Max(r.Max.X, n.Position.X+footprint.Width)
		r.Max.Y = math.Max(r.Max.Y, n.Position.Y+footprint.Height)
	}
	return r
}

func clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}
