package main

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestTileKeyValid(t *testing.T) {
	cases := []struct {
		key   TileKey
		valid bool
	}{
		{TileKey{X: 0, Y: 0, Z: 0}, true},
		{TileKey{X: 1, Y: 0, Z: 0}, false},
		{TileKey{X: 7, Y: 7, Z: 3}, true},
		{TileKey{X: 8, Y: 0, Z: 3}, false},
		{TileKey{X: -1, Y: 2, Z: 3}, false},
		{TileKey{X: 0, Y: 0, Z: -1}, false},
		{TileKey{X: 0, Y: 0, Z: ZoomMax + 1}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.valid, c.key.Valid(), c.key.String())
	}
}

func TestTileKeyString(t *testing.T) {
	assert.Equal(t, "3/5/6", TileKey{X: 5, Y: 6, Z: 3}.String())
}

func TestTileKeyMapTileRoundTrip(t *testing.T) {
	k := TileKey{X: 5, Y: 6, Z: 3}
	mt := k.MapTile()
	assert.EqualValues(t, 5, mt.X)
	assert.EqualValues(t, 6, mt.Y)
	assert.EqualValues(t, 3, mt.Z)
	assert.Equal(t, k, KeyFromMapTile(mt))
}

func TestNeighbors(t *testing.T) {
	n := TileKey{X: 5, Y: 5, Z: 3}.Neighbors()
	assert.Equal(t, []TileKey{
		{X: 4, Y: 4, Z: 3}, {X: 5, Y: 4, Z: 3}, {X: 6, Y: 4, Z: 3},
		{X: 4, Y: 5, Z: 3}, {X: 6, Y: 5, Z: 3},
		{X: 4, Y: 6, Z: 3}, {X: 5, Y: 6, Z: 3}, {X: 6, Y: 6, Z: 3},
	}, n)
	assert.NotContains(t, n, TileKey{X: 5, Y: 5, Z: 3})
}

func TestSplitZoom(t *testing.T) {
	cases := []struct {
		zoom       float64
		tileZoom   int
		fractional float64
	}{
		{1.0, 1, 0},
		{2.0, 2, 0},
		{2.5, 2, 0.5},
		{3.25, 3, 0.25},
		{0.5, 0, 0.5},
		{0.75, 0, 0.75},
	}
	for _, c := range cases {
		s := SplitZoom(c.zoom)
		assert.Equal(t, c.tileZoom, s.TileZoom, "zoom %v", c.zoom)
		assert.InDelta(t, c.fractional, s.Fractional, 1e-9, "zoom %v", c.zoom)
	}
}

func TestTileWorldSize(t *testing.T) {
	assert.Equal(t, 512.0, TileWorldSize(TileSize, 0))
	assert.Equal(t, 256.0, TileWorldSize(TileSize, 1))
	assert.Equal(t, 128.0, TileWorldSize(TileSize, 2))
	assert.Equal(t, 64.0, TileWorldSize(TileSize, 3))

	// the world is 2*base wide at every level
	for z := 0; z <= 5; z++ {
		assert.Equal(t, 512.0, TileWorldSize(TileSize, z)*float64(int(1)<<uint(z)))
	}
}

func TestLatLonToWorld(t *testing.T) {
	x, y := LatLonToWorld(orb.Point{0, 0}, TileSize)
	assert.InDelta(t, 256, x, 1e-9)
	assert.InDelta(t, 256, y, 1e-9)

	x, _ = LatLonToWorld(orb.Point{-180, 0}, TileSize)
	assert.InDelta(t, 0, x, 1e-9)

	_, y = LatLonToWorld(orb.Point{0, 85.05112878}, TileSize)
	assert.InDelta(t, 0, y, 1e-3)
}

func TestGetTileURL(t *testing.T) {
	s := TileServer{URL: "https://example.com/{z}/{x}/{y}.png"}
	assert.Equal(t, "https://example.com/3/5/6.png", s.GetTileURL(TileKey{X: 5, Y: 6, Z: 3}))

	var empty TileServer
	assert.Equal(t, "https://tile.openstreetmap.org/0/0/0.png", empty.GetTileURL(TileKey{}))
}
