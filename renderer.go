package main

import (
	"image"

	"golang.org/x/image/draw"
)

// TileRenderer scales tiles onto a raster surface.
type TileRenderer struct {
	scaler draw.Scaler
}

func NewTileRenderer() *TileRenderer {
	return &TileRenderer{scaler: draw.ApproxBiLinear}
}

// RenderTile draws img stretched over rect. Parts outside the surface are clipped.
func (r *TileRenderer) RenderTile(surface draw.Image, img image.Image, rect ScreenRect) {
	dst := rect.Image()
	if dst.Empty() || !dst.Overlaps(surface.Bounds()) {
		return
	}
	r.scaler.Scale(surface, dst, img, img.Bounds(), draw.Over, nil)
}
