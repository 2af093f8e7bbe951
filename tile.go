package main

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileSize 默认瓦片大小
const TileSize = 256

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 19

// DefaultBufferTiles extra tiles requested on every side of the view.
const DefaultBufferTiles = 2

// TileKey 瓦片坐标, 各级缓存与队列共用的键
// X and Y may fall outside the grid when the view extends past the world edge.
type TileKey struct {
	X int
	Y int
	Z int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// Valid reports whether the key addresses a tile that exists on a slippy map server.
func (k TileKey) Valid() bool {
	if k.Z < ZoomMin || k.Z > ZoomMax {
		return false
	}
	n := 1 << uint(k.Z)
	return k.X >= 0 && k.Y >= 0 && k.X < n && k.Y < n
}

// MapTile 转换为 orb 瓦片, 仅对 Valid 的键有意义
func (k TileKey) MapTile() maptile.Tile {
	return maptile.Tile{X: uint32(k.X), Y: uint32(k.Y), Z: maptile.Zoom(k.Z)}
}

// KeyFromMapTile is the inverse of MapTile.
func KeyFromMapTile(t maptile.Tile) TileKey {
	return TileKey{X: int(t.X), Y: int(t.Y), Z: int(t.Z)}
}

// Neighbors returns the 8 tiles around k (3x3 block minus the center), row-major.
func (k TileKey) Neighbors() []TileKey {
	res := make([]TileKey, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			res = append(res, TileKey{X: k.X + dx, Y: k.Y + dy, Z: k.Z})
		}
	}
	return res
}

// TileZoomSplit separates a continuous camera zoom into the integer level used
// for addressing and the remaining fractional part.
type TileZoomSplit struct {
	TileZoom   int
	Fractional float64
}

func SplitZoom(zoom float64) TileZoomSplit {
	tz := int(math.Floor(zoom))
	if tz < ZoomMin {
		tz = ZoomMin
	}
	if tz == 0 {
		return TileZoomSplit{TileZoom: 0, Fractional: zoom}
	}
	return TileZoomSplit{TileZoom: tz, Fractional: math.Mod(zoom, float64(tz))}
}

// TileWorldSize is the world-space edge of one tile at tileZoom.
// The whole map spans 2*base world pixels at every level.
func TileWorldSize(base, tileZoom int) float64 {
	return float64(base) * math.Pow(0.5, float64(tileZoom-1))
}

// LatLonToWorld projects a WGS84 point into world pixels (Web Mercator).
func LatLonToWorld(p orb.Point, base int) (float64, float64) {
	world := float64(2 * base)
	lat := math.Max(math.Min(p.Lat(), 85.05112878), -85.05112878)
	x := (p.Lon() + 180) / 360 * world
	sin := math.Sin(lat * math.Pi / 180)
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * world
	return x, y
}

// Constants representing TileFormat types
const (
	PNG  = "png"
	JPG  = "jpg"
	WEBP = "webp"
)
