package main

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	DefaultMinZoom = 0.5
	DefaultMaxZoom = 5.0
)

type MapOptions struct {
	TileSize     int
	Buffer       int
	FrameTimeout time.Duration
	MinZoom      float64
	MaxZoom      float64
	ClampZoom    bool
}

// TileBatcher resolves a set of misses with a bounded wait.
type TileBatcher interface {
	Load(keys []TileKey, timeout time.Duration) BatchResult
	Close()
}

// FrameStats what one Draw call saw and rendered.
type FrameStats struct {
	Frame    uint64
	TileZoom int
	Visible  int
	OffGrid  int
	Hits     int
	Misses   int
	Resolved int
	Late     int
	Failed   int
}

// Rendered tiles drawn this frame.
func (s FrameStats) Rendered() int {
	return s.Hits + s.Resolved
}

// MapManager per-frame entry point of the tile pipeline.
type MapManager struct {
	opts      MapOptions
	resolver  TileResolver
	preloader Preloader
	batch     TileBatcher
	renderer  *TileRenderer
	logger    logrus.FieldLogger
	ctx       context.Context
	cancel    context.CancelFunc

	mu    sync.Mutex
	split TileZoomSplit
	frame uint64
}

func NewMapManager(opts MapOptions, resolver TileResolver, preloader Preloader, batch TileBatcher, logger logrus.FieldLogger) *MapManager {
	if opts.TileSize <= 0 {
		opts.TileSize = TileSize
	}
	if opts.Buffer < 0 {
		opts.Buffer = DefaultBufferTiles
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	if opts.MinZoom <= 0 {
		opts.MinZoom = DefaultMinZoom
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = DefaultMaxZoom
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MapManager{
		opts:      opts,
		resolver:  resolver,
		preloader: preloader,
		batch:     batch,
		renderer:  NewTileRenderer(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		split:     SplitZoom(1.0),
	}
}

// Update refreshes the zoom split from the viewport, clamping the viewport
// zoom into [MinZoom, MaxZoom] when enabled.
func (m *MapManager) Update(v *Viewport) {
	s := v.State()
	zoom := s.Zoom
	if m.opts.ClampZoom {
		if zoom < m.opts.MinZoom {
			zoom = m.opts.MinZoom
		} else if zoom > m.opts.MaxZoom {
			zoom = m.opts.MaxZoom
		}
		if zoom != s.Zoom {
			m.logger.WithFields(logrus.Fields{"zoom": s.Zoom, "clamped": zoom}).Debug("zoom clamped")
			v.Update(s.WorldX, s.WorldY, zoom)
		}
	}

	m.mu.Lock()
	m.split = SplitZoom(zoom)
	m.mu.Unlock()
}

func (m *MapManager) ZoomSplit() TileZoomSplit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.split
}

// Draw composites the visible tiles onto surface. Memory hits render inline;
// misses are batch-resolved with a bounded wait and whatever arrives in time
// is rendered. Late tiles stay ordinary misses for the next frame.
func (m *MapManager) Draw(surface draw.Image, v *Viewport) FrameStats {
	m.preloader.EnsureRunning(m.ctx)

	m.mu.Lock()
	m.frame++
	stats := FrameStats{Frame: m.frame, TileZoom: m.split.TileZoom}
	m.mu.Unlock()

	state := v.State()
	rng := VisibleTileRange(state.Bounds(), stats.TileZoom, m.opts.TileSize, m.opts.Buffer)

	var pending []TileKey
	for _, k := range rng.Keys() {
		stats.Visible++
		if !k.Valid() {
			stats.OffGrid++
			continue
		}
		m.preloader.PreloadSurrounding(k.X, k.Y, k.Z)

		if img, ok := m.resolver.Cached(k); ok {
			m.render(surface, img, k, state)
			stats.Hits++
			continue
		}
		pending = append(pending, k)
	}
	stats.Misses = len(pending)

	if len(pending) > 0 {
		res := m.batch.Load(pending, m.opts.FrameTimeout)
		for _, k := range pending {
			if img, ok := res.Loaded[k]; ok {
				m.render(surface, img, k, state)
				stats.Resolved++
			}
		}
		stats.Late = len(res.Pending)
		stats.Failed = len(res.Failed)
		if stats.Late > 0 {
			m.logger.WithFields(logrus.Fields{
				"frame": stats.Frame,
				"late":  stats.Late,
			}).Debug("frame deadline reached")
		}
	}
	return stats
}

// Cleanup stops the background loader and closes the fetch session.
func (m *MapManager) Cleanup() {
	m.cancel()
	m.preloader.Stop()
	m.batch.Close()
	if c, ok := m.resolver.(interface{ Close() }); ok {
		c.Close()
	}
	m.logger.Info("map manager cleaned up")
}

func (m *MapManager) render(surface draw.Image, img image.Image, k TileKey, s ViewportState) {
	m.renderer.RenderTile(surface, img, ScreenRectForTile(k, s, m.opts.TileSize))
}
