package main

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapManager(r *fakeResolver, p *fakePreloader, opts MapOptions) *MapManager {
	return NewMapManager(opts, r, p, NewBatchLoader(r, 4, nullLogger()), nullLogger())
}

func TestMapManagerSkipsOffGridTiles(t *testing.T) {
	r := newFakeResolver()
	p := &fakePreloader{}
	m := newTestMapManager(r, p, MapOptions{Buffer: DefaultBufferTiles, FrameTimeout: time.Second, ClampZoom: true})
	defer m.Cleanup()

	v := NewViewport(1024, 768)
	v.Update(0, 0, 2.0)
	m.Update(v)
	assert.Equal(t, TileZoomSplit{TileZoom: 2, Fractional: 0}, m.ZoomSplit())

	surface := image.NewRGBA(image.Rect(0, 0, 1024, 768))
	stats := m.Draw(surface, v)
	assert.Equal(t, uint64(1), stats.Frame)
	assert.Equal(t, 64, stats.Visible)
	assert.Equal(t, 48, stats.OffGrid)
	assert.Equal(t, 16, stats.Misses)
	assert.Equal(t, 16, stats.Resolved)
	assert.Equal(t, 16, stats.Rendered())

	for _, k := range r.Resolved() {
		assert.True(t, k.Valid(), k.String())
	}
	assert.Len(t, p.surround, 16)
	assert.Equal(t, 1, p.ensured)
}

func TestMapManagerFrameDeadline(t *testing.T) {
	r := newFakeResolver()
	slow := []TileKey{{X: 4, Y: 1, Z: 3}, {X: 5, Y: 1, Z: 3}}
	for _, k := range slow {
		r.blocked[k] = true
	}
	defer close(r.release)

	p := &fakePreloader{}
	m := newTestMapManager(r, p, MapOptions{Buffer: 0, FrameTimeout: 300 * time.Millisecond})
	defer m.Cleanup()

	// world x in [64, 384], y in [64, 128] at zoom 3: tiles x 1..5, y 1
	v := NewViewport(960, 192)
	v.Update(224, 96, 3.0)
	m.Update(v)

	surface := image.NewRGBA(image.Rect(0, 0, 960, 192))
	stats := m.Draw(surface, v)
	assert.Equal(t, 5, stats.Visible)
	assert.Equal(t, 5, stats.Misses)
	assert.Equal(t, 3, stats.Resolved)
	assert.Equal(t, 2, stats.Late)
	assert.Equal(t, 0, stats.Failed)

	// 迟到的瓦片不会被标记失败, 下一帧仍按未命中处理
	stats = m.Draw(surface, v)
	assert.Equal(t, uint64(2), stats.Frame)
	assert.Equal(t, 3, stats.Hits)
	assert.Equal(t, 2, stats.Misses)
	assert.Equal(t, 2, stats.Late)
	for _, k := range slow {
		_, ok := r.Cached(k)
		assert.False(t, ok)
	}
	assert.Len(t, r.Resolved(), 5)
}

func TestMapManagerRendersHits(t *testing.T) {
	r := newFakeResolver()
	k := TileKey{X: 0, Y: 0, Z: 1}
	r.memory[k] = solidTile(color.RGBA{R: 0xff, A: 0xff})

	m := newTestMapManager(r, &fakePreloader{}, MapOptions{Buffer: 0})
	defer m.Cleanup()

	v := NewViewport(256, 256)
	v.Update(128, 128, 1.0)
	m.Update(v)

	surface := image.NewRGBA(image.Rect(0, 0, 256, 256))
	stats := m.Draw(surface, v)
	require.Equal(t, 1, stats.Hits)
	assert.Equal(t, 0, stats.Misses)
	assert.Empty(t, r.Resolved())

	c := surface.RGBAAt(128, 128)
	assert.Equal(t, uint8(0xff), c.R)
	assert.Equal(t, uint8(0), c.G)
}

func TestMapManagerClampsZoom(t *testing.T) {
	m := newTestMapManager(newFakeResolver(), &fakePreloader{}, MapOptions{ClampZoom: true})
	defer m.Cleanup()

	v := NewViewport(100, 100)
	v.Update(10, 20, 10)
	m.Update(v)
	assert.Equal(t, DefaultMaxZoom, v.Zoom())
	assert.Equal(t, 5, m.ZoomSplit().TileZoom)

	v.Update(10, 20, 0.1)
	m.Update(v)
	assert.Equal(t, DefaultMinZoom, v.Zoom())
	assert.Equal(t, 0, m.ZoomSplit().TileZoom)

	s := v.State()
	assert.Equal(t, 10.0, s.WorldX)
	assert.Equal(t, 20.0, s.WorldY)
}

func TestMapManagerUnclampedZoom(t *testing.T) {
	m := newTestMapManager(newFakeResolver(), &fakePreloader{}, MapOptions{ClampZoom: false})
	defer m.Cleanup()

	v := NewViewport(100, 100)
	v.Update(0, 0, 10.5)
	m.Update(v)
	assert.Equal(t, 10.5, v.Zoom())
	assert.Equal(t, TileZoomSplit{TileZoom: 10, Fractional: 0.5}, m.ZoomSplit())
}

func TestMapManagerCleanupStopsLoader(t *testing.T) {
	p := &fakePreloader{}
	m := newTestMapManager(newFakeResolver(), p, MapOptions{})
	m.Cleanup()
	assert.True(t, p.stopped)
}
