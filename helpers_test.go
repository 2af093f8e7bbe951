package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func solidTile(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidTile(c)))
	return buf.Bytes()
}

// fakeResolver memory map plus optional keys that block until released.
type fakeResolver struct {
	mu       sync.Mutex
	memory   map[TileKey]image.Image
	blocked  map[TileKey]bool
	failing  map[TileKey]bool
	release  chan struct{}
	resolved []TileKey
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		memory:  make(map[TileKey]image.Image),
		blocked: make(map[TileKey]bool),
		failing: make(map[TileKey]bool),
		release: make(chan struct{}),
	}
}

func (r *fakeResolver) Cached(k TileKey) (image.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.memory[k]
	return img, ok
}

func (r *fakeResolver) Resolve(ctx context.Context, k TileKey) (image.Image, error) {
	r.mu.Lock()
	r.resolved = append(r.resolved, k)
	blocked, failing := r.blocked[k], r.failing[k]
	r.mu.Unlock()

	if failing {
		return nil, ErrUnexpectedStatus
	}
	if blocked {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	img := solidTile(color.RGBA{R: 0xff, A: 0xff})
	r.mu.Lock()
	r.memory[k] = img
	r.mu.Unlock()
	return img, nil
}

func (r *fakeResolver) Resolved() []TileKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TileKey(nil), r.resolved...)
}

type fakePreloader struct {
	mu       sync.Mutex
	ensured  int
	stopped  bool
	surround []TileKey
}

func (p *fakePreloader) PreloadSurrounding(x, y, zoom int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surround = append(p.surround, TileKey{X: x, Y: y, Z: zoom})
}

func (p *fakePreloader) EnsureRunning(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensured++
}

func (p *fakePreloader) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}
