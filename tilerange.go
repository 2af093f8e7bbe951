package main

import (
	"image"
	"math"
)

// TileRange inclusive rectangle of tile coordinates at one zoom level.
type TileRange struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
	Zoom int
}

func (r TileRange) Width() int {
	if r.MaxX < r.MinX {
		return 0
	}
	return r.MaxX - r.MinX + 1
}

func (r TileRange) Height() int {
	if r.MaxY < r.MinY {
		return 0
	}
	return r.MaxY - r.MinY + 1
}

func (r TileRange) Count() int {
	return r.Width() * r.Height()
}

func (r TileRange) Contains(k TileKey) bool {
	return k.Z == r.Zoom && k.X >= r.MinX && k.X <= r.MaxX && k.Y >= r.MinY && k.Y <= r.MaxY
}

// Keys enumerates the range row-major: y outer, x inner.
func (r TileRange) Keys() []TileKey {
	keys := make([]TileKey, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			keys = append(keys, TileKey{X: x, Y: y, Z: r.Zoom})
		}
	}
	return keys
}

// VisibleTileRange maps world bounds to the tiles touching them at tileZoom,
// grown by buffer tiles on every side. Partially visible edge tiles are
// always included; there is no pixel-level clipping.
func VisibleTileRange(b Bounds, tileZoom, base, buffer int) TileRange {
	ts := TileWorldSize(base, tileZoom)
	return TileRange{
		MinX: int(math.Floor(b.Left/ts)) - buffer,
		MinY: int(math.Floor(b.Top/ts)) - buffer,
		MaxX: int(math.Ceil(b.Right/ts)) - 1 + buffer,
		MaxY: int(math.Ceil(b.Bottom/ts)) - 1 + buffer,
		Zoom: tileZoom,
	}
}

// ScreenRect on-screen placement of a square tile.
type ScreenRect struct {
	X    float64
	Y    float64
	Size float64
}

// Image returns the smallest integer rectangle covering r.
func (r ScreenRect) Image() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Size)),
		int(math.Ceil(r.Y+r.Size)),
	)
}

// ScreenRectForTile places key on screen under the viewport's current transform.
func ScreenRectForTile(k TileKey, s ViewportState, base int) ScreenRect {
	ts := TileWorldSize(base, k.Z)
	x, y := s.WorldToScreen(float64(k.X)*ts, float64(k.Y)*ts)
	return ScreenRect{X: x, Y: y, Size: ts * s.Zoom}
}
