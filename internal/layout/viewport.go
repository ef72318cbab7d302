package layout

import (
	"fmt"
	"math"
)

// Viewport is the rendering transform applied on top of layout coordinates.
// It never changes the coordinates themselves.
type Viewport struct {
	Scale    float64 `json:"scale"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	MinScale float64 `json:"min_scale"`
	MaxScale float64 `json:"max_scale"`
}

func NewViewport(minScale, maxScale float64) Viewport {
	return Viewport{Scale: 1, MinScale: minScale, MaxScale: maxScale}
}

func (v Viewport) clamp(k float64) float64 {
	if math.IsNaN(k) {
		return v.Scale
	}
	return math.Max(v.MinScale, math.Min(v.MaxScale, k))
}

// ZoomTo sets the scale, clamped to [MinScale, MaxScale], keeping the
// translation. It returns the applied scale.
func (v *Viewport) ZoomTo(k float64) float64 {
	v.Scale = v.clamp(k)
	return v.Scale
}

// ZoomAround multiplies the scale by factor while keeping the screen point
// (px, py) fixed.
func (v *Viewport) ZoomAround(factor, px, py float64) float64 {
	next := v.clamp(v.Scale * factor)
	ratio := next / v.Scale
	v.X = px - (px-v.X)*ratio
	v.Y = py - (py-v.Y)*ratio
	v.Scale = next
	return next
}

func (v *Viewport) Pan(dx, dy float64) {
	v.X += dx
	v.Y += dy
}

func (v *Viewport) Reset() {
	v.Scale, v.X, v.Y = 1, 0, 0
}

// Apply maps a layout point to screen space.
func (v Viewport) Apply(p Point, margin float64) Point {
	return Point{
		X: margin + v.X + p.X*v.Scale,
		Y: margin + v.Y + p.Y*v.Scale,
	}
}

// Transform is the SVG transform attribute for the main group.
func (v Viewport) Transform(margin float64) string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)", num(margin+v.X), num(margin+v.Y), num(v.Scale))
}
