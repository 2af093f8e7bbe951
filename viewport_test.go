package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportBounds(t *testing.T) {
	v := NewViewport(1024, 768)
	v.Update(0, 0, 2.0)

	b := v.VisibleBounds()
	assert.Equal(t, Bounds{Left: -256, Top: -192, Right: 256, Bottom: 192}, b)
}

func TestViewportRoundTrip(t *testing.T) {
	v := NewViewport(800, 600)
	for _, zoom := range []float64{0.5, 1, 1.7, 4} {
		v.Update(123.5, -42.25, zoom)
		for _, p := range [][2]float64{{0, 0}, {400, 300}, {799, 1}, {13.3, 587.9}} {
			wx, wy := v.ScreenToWorld(p[0], p[1])
			sx, sy := v.WorldToScreen(wx, wy)
			assert.InDelta(t, p[0], sx, 1e-9)
			assert.InDelta(t, p[1], sy, 1e-9)
		}
	}
}

func TestViewportCenterMapsToScreenCenter(t *testing.T) {
	v := NewViewport(800, 600)
	v.Update(300, 200, 3)
	x, y := v.WorldToScreen(300, 200)
	assert.Equal(t, 400.0, x)
	assert.Equal(t, 300.0, y)
}

func TestViewportInViewport(t *testing.T) {
	v := NewViewport(200, 100)
	v.Update(0, 0, 1)
	assert.True(t, v.InViewport(0, 0))
	assert.True(t, v.InViewport(100, 50))
	assert.False(t, v.InViewport(101, 0))
	assert.False(t, v.InViewport(0, -51))
}

func TestViewportResize(t *testing.T) {
	v := NewViewport(200, 100)
	v.Resize(400, 300)
	s := v.State()
	assert.Equal(t, 400, s.Width)
	assert.Equal(t, 300, s.Height)
	assert.Equal(t, 1.0, s.Zoom)
}
