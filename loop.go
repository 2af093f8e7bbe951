package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"golang.org/x/image/draw"
)

// DefaultFPS 默认帧率
const DefaultFPS = 30

// Camera 相机, 中心点为世界像素坐标
// PanX and PanY are world px per second at zoom 1; ZoomSpeed is the
// relative zoom change per second.
type Camera struct {
	X         float64
	Y         float64
	Zoom      float64
	PanX      float64
	PanY      float64
	ZoomSpeed float64
}

// Step advances the camera by dt. Panning slows as the map zooms in so the
// on-screen speed stays constant.
func (c *Camera) Step(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	c.X += c.PanX * sec / zoom
	c.Y += c.PanY * sec / zoom
	if c.ZoomSpeed != 0 {
		c.Zoom = zoom * math.Pow(1+c.ZoomSpeed, sec)
	}
}

// FrameDrawer 每帧更新并绘制地图
type FrameDrawer interface {
	Update(v *Viewport)
	Draw(surface draw.Image, v *Viewport) FrameStats
}

type LoopOptions struct {
	FPS           int
	Frames        int
	SnapshotEvery int
	OutputDir     string
	Background    color.Color
}

// FrameLoop drives the camera, the viewport and the map at a fixed rate.
type FrameLoop struct {
	ID       string
	opts     LoopOptions
	camera   *Camera
	viewport *Viewport
	drawer   FrameDrawer
	surface  *image.RGBA
	logger   logrus.FieldLogger

	frames    int
	snapshots []string
}

func NewFrameLoop(opts LoopOptions, camera *Camera, viewport *Viewport, drawer FrameDrawer, logger logrus.FieldLogger) *FrameLoop {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	id, _ := shortid.Generate()
	s := viewport.State()
	return &FrameLoop{
		ID:       id,
		opts:     opts,
		camera:   camera,
		viewport: viewport,
		drawer:   drawer,
		surface:  image.NewRGBA(image.Rect(0, 0, s.Width, s.Height)),
		logger:   logger.WithField("session", id),
	}
}

// Run ticks until ctx is cancelled or the configured frame count is reached.
func (l *FrameLoop) Run(ctx context.Context) error {
	if l.opts.SnapshotEvery > 0 {
		if err := os.MkdirAll(l.opts.OutputDir, os.ModePerm); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(l.opts.FPS))
	defer ticker.Stop()

	l.logger.WithFields(logrus.Fields{"fps": l.opts.FPS, "frames": l.opts.Frames}).Info("frame loop started")
	last := time.Now()
	for l.opts.Frames == 0 || l.frames < l.opts.Frames {
		select {
		case <-ctx.Done():
			l.logger.WithField("frames", l.frames).Info("frame loop stopped")
			return nil
		case now := <-ticker.C:
			l.frames++
			l.frame(l.frames, now.Sub(last))
			last = now
		}
	}
	l.logger.WithField("frames", l.frames).Info("frame loop finished")
	return nil
}

// Frames 已执行的帧数
func (l *FrameLoop) Frames() int {
	return l.frames
}

// Snapshots paths of the PNG files written so far.
func (l *FrameLoop) Snapshots() []string {
	return l.snapshots
}

func (l *FrameLoop) Surface() *image.RGBA {
	return l.surface
}

func (l *FrameLoop) frame(n int, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithFields(logrus.Fields{"frame": n, "panic": r}).Error("frame failed")
		}
	}()

	l.camera.Step(dt)
	l.viewport.Update(l.camera.X, l.camera.Y, l.camera.Zoom)
	l.drawer.Update(l.viewport)
	// 相机跟随被限制后的缩放
	l.camera.Zoom = l.viewport.Zoom()

	draw.Draw(l.surface, l.surface.Bounds(), &image.Uniform{C: l.opts.Background}, image.Point{}, draw.Src)
	stats := l.drawer.Draw(l.surface, l.viewport)
	l.logger.WithFields(logrus.Fields{
		"frame":    n,
		"zoom":     stats.TileZoom,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"rendered": stats.Rendered(),
	}).Debug("frame drawn")

	if l.opts.SnapshotEvery > 0 && n%l.opts.SnapshotEvery == 0 {
		if err := l.snapshot(n); err != nil {
			l.logger.WithError(err).Warn("snapshot failed")
		}
	}
}

func (l *FrameLoop) snapshot(n int) error {
	name := filepath.Join(l.opts.OutputDir, fmt.Sprintf("frame_%s_%05d.png", l.ID, n))
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, l.surface); err != nil {
		return err
	}
	l.snapshots = append(l.snapshots, name)
	return nil
}

// parseHexColor "#rrggbb" 格式颜色, 解析失败返回白色
func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.White
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.White
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
