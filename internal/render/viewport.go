package render

import (
	"math"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
)

type ViewportConfig struct {
	MinScale   float64
	MaxScale   float64
	ZoomFactor float64 // scale multiplier per zoom step
}

func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{MinScale: 0.1, MaxScale: 8, ZoomFactor: 1.1}
}

func (c ViewportConfig) withDefaults() ViewportConfig {
	d := DefaultViewportConfig()
	if !(c.MinScale > 0) {
		c.MinScale = d.MinScale
	}
	if !(c.MaxScale >= c.MinScale) {
		c.MaxScale = math.Max(d.MaxScale, c.MinScale)
	}
	if !(c.ZoomFactor > 1) {
		c.ZoomFactor = d.ZoomFactor
	}
	return c
}

// Viewport maps between world and screen space: screen = world*scale + pan.
type Viewport struct {
	x, y, scale   float64
	width, height float64
	cfg           ViewportConfig
	scheduler     FrameScheduler

	resizePending bool
	pendingW      float64
	pendingH      float64
	onResize      func(w, h float64)
}

func NewViewport(cfg ViewportConfig, scheduler FrameScheduler) *Viewport {
	return &Viewport{scale: 1, cfg: cfg.withDefaults(), scheduler: scheduler}
}

// Config returns the effective configuration.
func (v *Viewport) Config() ViewportConfig {
	return v.cfg
}

// State returns the viewport as stored in snapshots.
func (v *Viewport) State() document.Viewport {
	return document.Viewport{X: v.x, Y: v.y, Scale: v.scale, Width: v.width, Height: v.height}
}

// Set replaces pan and scale. The scale is clamped; a zero size keeps the
// current one.
func (v *Viewport) Set(s document.Viewport) {
	v.x, v.y = s.X, s.Y
	v.scale = v.clamp(s.Scale)
	if s.Width > 0 && s.Height > 0 {
		v.width, v.height = s.Width, s.Height
	}
}

func (v *Viewport) clamp(s float64) float64 {
	if !(s > 0) || math.IsInf(s, 0) {
		return v.cfg.MinScale
	}
	return math.Min(v.cfg.MaxScale, math.Max(v.cfg.MinScale, s))
}

func (v *Viewport) Scale() float64 {
	return v.scale
}

func (v *Viewport) Pan() geometry.Point {
	return geometry.Point{X: v.x, Y: v.y}
}

func (v *Viewport) ScreenToWorld(p geometry.Point) geometry.Point {
	return geometry.Point{X: (p.X - v.x) / v.scale, Y: (p.Y - v.y) / v.scale}
}

func (v *Viewport) WorldToScreen(p geometry.Point) geometry.Point {
	return geometry.Point{X: p.X*v.scale + v.x, Y: p.Y*v.scale + v.y}
}

// Matrix is the world-to-screen transform applied to panning layers.
func (v *Viewport) Matrix() geometry.Matrix2D {
	return geometry.Translate(v.x, v.y).Multiply(geometry.Scale(v.scale, v.scale))
}

// PanBy moves the content by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.x += dx
	v.y += dy
}

// ZoomAt sets the scale, keeping the world point under the screen anchor
// fixed. It returns the applied (clamped) scale.
func (v *Viewport) ZoomAt(anchor geometry.Point, scale float64) float64 {
	next := v.clamp(scale)
	ratio := next / v.scale
	v.x = anchor.X - (anchor.X-v.x)*ratio
	v.y = anchor.Y - (anchor.Y-v.y)*ratio
	v.scale = next
	return next
}

// ZoomStep zooms in (direction > 0) or out (direction < 0) by one factor.
func (v *Viewport) ZoomStep(anchor geometry.Point, direction int) float64 {
	switch {
	case direction > 0:
		return v.ZoomAt(anchor, v.scale*v.cfg.ZoomFactor)
	case direction < 0:
		return v.ZoomAt(anchor, v.scale/v.cfg.ZoomFactor)
	default:
		return v.scale
	}
}

// VisibleWorldRect is the world area covered by the stage. It is empty
// until a size is known.
func (v *Viewport) VisibleWorldRect() geometry.Rect {
	if v.width <= 0 || v.height <= 0 {
		return geometry.Rect{}
	}
	tl := v.ScreenToWorld(geometry.Point{})
	return geometry.Rect{X: tl.X, Y: tl.Y, Width: v.width / v.scale, Height: v.height / v.scale}
}

// OnResize sets the callback run when a debounced resize is applied.
func (v *Viewport) OnResize(fn func(w, h float64)) {
	v.onResize = fn
}

// RequestResize records a new stage size. Bursts within one frame collapse
// into a single resize with the last size.
func (v *Viewport) RequestResize(w, h float64) {
	v.pendingW, v.pendingH = w, h
	if v.resizePending {
		return
	}
	v.resizePending = true
	v.scheduler.RequestFrame(v.applyResize)
}

func (v *Viewport) applyResize() {
	v.resizePending = false
	if v.pendingW <= 0 || v.pendingH <= 0 {
		return
	}
	v.width, v.height = v.pendingW, v.pendingH
	if v.onResize != nil {
		v.onResize(v.width, v.height)
	}
}
