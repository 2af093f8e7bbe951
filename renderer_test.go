package main

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTileScales(t *testing.T) {
	surface := image.NewRGBA(image.Rect(0, 0, 100, 100))
	tile := solidTile(color.RGBA{G: 0xff, A: 0xff})

	NewTileRenderer().RenderTile(surface, tile, ScreenRect{X: 10, Y: 10, Size: 50})

	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, surface.RGBAAt(30, 30))
	assert.Equal(t, color.RGBA{}, surface.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{}, surface.RGBAAt(70, 70))
}

func TestRenderTileOutsideSurface(t *testing.T) {
	surface := image.NewRGBA(image.Rect(0, 0, 10, 10))
	tile := solidTile(color.White)

	r := NewTileRenderer()
	r.RenderTile(surface, tile, ScreenRect{X: 20, Y: 20, Size: 5})
	r.RenderTile(surface, tile, ScreenRect{X: 0, Y: 0, Size: 0})
	assert.Equal(t, color.RGBA{}, surface.RGBAAt(0, 0))
}
