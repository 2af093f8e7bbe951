package main

import "sync"

// ViewportState camera window into world space. Bounds are derived, never stored.
type ViewportState struct {
	Width  int
	Height int
	WorldX float64
	WorldY float64
	Zoom   float64
}

// Bounds world-space rectangle (left, top, right, bottom).
type Bounds struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

func (s ViewportState) Bounds() Bounds {
	halfW := float64(s.Width) / s.Zoom / 2
	halfH := float64(s.Height) / s.Zoom / 2
	return Bounds{
		Left:   s.WorldX - halfW,
		Top:    s.WorldY - halfH,
		Right:  s.WorldX + halfW,
		Bottom: s.WorldY + halfH,
	}
}

// Viewport 视口, 负责屏幕坐标与世界坐标的转换
type Viewport struct {
	mu    sync.RWMutex
	state ViewportState
}

func NewViewport(width, height int) *Viewport {
	return &Viewport{
		state: ViewportState{Width: width, Height: height, Zoom: 1.0},
	}
}

// Update sets the camera center and zoom.
func (v *Viewport) Update(centerX, centerY, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.WorldX = centerX
	v.state.WorldY = centerY
	v.state.Zoom = zoom
}

func (v *Viewport) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Width = width
	v.state.Height = height
}

// State returns a snapshot; callers never see a half-applied update.
func (v *Viewport) State() ViewportState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *Viewport) Zoom() float64 {
	return v.State().Zoom
}

func (v *Viewport) VisibleBounds() Bounds {
	return v.State().Bounds()
}

func (v *Viewport) WorldToScreen(worldX, worldY float64) (float64, float64) {
	return v.State().WorldToScreen(worldX, worldY)
}

func (v *Viewport) ScreenToWorld(screenX, screenY float64) (float64, float64) {
	return v.State().ScreenToWorld(screenX, screenY)
}

// InViewport reports whether a world point lies inside the visible bounds.
func (v *Viewport) InViewport(worldX, worldY float64) bool {
	b := v.VisibleBounds()
	return b.Left <= worldX && worldX <= b.Right && b.Top <= worldY && worldY <= b.Bottom
}

func (s ViewportState) WorldToScreen(worldX, worldY float64) (float64, float64) {
	screenX := (worldX-s.WorldX)*s.Zoom + float64(s.Width)/2
	screenY := (worldY-s.WorldY)*s.Zoom + float64(s.Height)/2
	return screenX, screenY
}

func (s ViewportState) ScreenToWorld(screenX, screenY float64) (float64, float64) {
	worldX := (screenX-float64(s.Width)/2)/s.Zoom + s.WorldX
	worldY := (screenY-float64(s.Height)/2)/s.Zoom + s.WorldY
	return worldX, worldY
}
