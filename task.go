package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// Layer 单个级别的预热区域
type Layer struct {
	Zoom       int
	Count      int64
	Collection orb.Collection
}

func (l Layer) String() string {
	return fmt.Sprintf("zoom %d (%d tiles)", l.Zoom, l.Count)
}

// DiskIndex tells whether a tile is already persisted.
type DiskIndex interface {
	OnDisk(k TileKey) bool
}

// WarmStats 预热结果
type WarmStats struct {
	Fetched int64
	Skipped int64
	Failed  int64
}

// WarmTask 缓存预热任务
// Tiles go through the coordinator, so the warm run shares the rate limit
// and the disk layout with the viewer.
type WarmTask struct {
	ID       string
	Name     string
	Layers   []Layer
	Total    int64
	ShowBar  bool
	resolver TileResolver
	disk     DiskIndex
	bufSize  int
	logger   logrus.FieldLogger

	tileWG    sync.WaitGroup
	workers   chan struct{}
	abort     chan struct{}
	abortOnce sync.Once

	fetched int64
	skipped int64
	failed  int64
}

// LoadLayers 按配置展开每个级别的预热区域
func LoadLayers(lrs []LayerConf) ([]Layer, error) {
	var layers []Layer
	for _, lr := range lrs {
		if lr.Min > lr.Max || lr.Min < ZoomMin || lr.Max > ZoomMax {
			return nil, fmt.Errorf("invalid layer zoom range [%d, %d]", lr.Min, lr.Max)
		}
		c, err := loadCollection(lr.Geojson)
		if err != nil {
			return nil, err
		}
		for z := lr.Min; z <= lr.Max; z++ {
			layers = append(layers, Layer{Zoom: z, Collection: c})
		}
	}
	return layers, nil
}

// NewWarmTask 创建预热任务
func NewWarmTask(name string, layers []Layer, resolver TileResolver, disk DiskIndex, workers, bufSize int, logger logrus.FieldLogger) *WarmTask {
	if workers <= 0 {
		workers = 1
	}
	id, _ := shortid.Generate()

	task := &WarmTask{
		ID:       id,
		Name:     name,
		Layers:   layers,
		resolver: resolver,
		disk:     disk,
		bufSize:  bufSize,
		logger:   logger.WithField("task", id),
		workers:  make(chan struct{}, workers),
		abort:    make(chan struct{}),
	}

	for i := range task.Layers {
		task.Layers[i].Count = tilecover.CollectionCount(task.Layers[i].Collection, maptile.Zoom(task.Layers[i].Zoom))
		task.logger.Debugf("zoom: %d, tiles: %d", task.Layers[i].Zoom, task.Layers[i].Count)
		task.Total += task.Layers[i].Count
	}
	return task
}

// Bound 范围
func (task *WarmTask) Bound() orb.Bound {
	bound := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{-1, -1}}
	for _, layer := range task.Layers {
		for _, g := range layer.Collection {
			bound = bound.Union(g.Bound())
		}
	}
	return bound
}

// Abort 结束任务, 已发出的请求会完成
func (task *WarmTask) Abort() {
	task.abortOnce.Do(func() {
		close(task.abort)
	})
}

// Run warms every layer in order and returns the counters.
func (task *WarmTask) Run(ctx context.Context) WarmStats {
	start := time.Now()
	task.logger.WithFields(logrus.Fields{"name": task.Name, "total": task.Total}).Info("warm task started")
	for _, layer := range task.Layers {
		if task.aborted(ctx) {
			break
		}
		task.warmLayer(ctx, layer)
	}

	stats := task.Stats()
	task.logger.WithFields(logrus.Fields{
		"fetched": stats.Fetched,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
	}).Infof("%.3fs finished", time.Since(start).Seconds())
	return stats
}

func (task *WarmTask) Stats() WarmStats {
	return WarmStats{
		Fetched: atomic.LoadInt64(&task.fetched),
		Skipped: atomic.LoadInt64(&task.skipped),
		Failed:  atomic.LoadInt64(&task.failed),
	}
}

func (task *WarmTask) aborted(ctx context.Context) bool {
	select {
	case <-task.abort:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// warmLayer 预热指定层级
func (task *WarmTask) warmLayer(ctx context.Context, layer Layer) {
	task.logger.Infof("layer %s starting", layer)
	var bar *pb.ProgressBar
	if task.ShowBar {
		bar = pb.New64(layer.Count).Prefix(fmt.Sprintf("Zoom %d : ", layer.Zoom))
		bar.SetRefreshRate(time.Second)
		bar.Start()
	}

	tilelist := make(chan maptile.Tile, task.bufSize)
	go tilecover.CollectionChannel(layer.Collection, maptile.Zoom(layer.Zoom), tilelist)

	defer func() {
		// 放弃剩余瓦片, 让生产者退出
		go func() {
			for range tilelist {
			}
		}()
	}()

loop:
	for mt := range tilelist {
		k := KeyFromMapTile(mt)
		if task.disk.OnDisk(k) {
			atomic.AddInt64(&task.skipped, 1)
			if bar != nil {
				bar.Increment()
			}
			continue
		}
		select {
		case task.workers <- struct{}{}:
			if bar != nil {
				bar.Increment()
			}
			task.tileWG.Add(1)
			go task.warmTile(ctx, k)
		case <-task.abort:
			task.logger.Infof("task %s got canceled", task.Name)
			break loop
		case <-ctx.Done():
			task.logger.Infof("task %s got canceled", task.Name)
			break loop
		}
	}
	// 等待该层结束
	task.tileWG.Wait()
	if bar != nil {
		bar.FinishPrint(fmt.Sprintf("Task %s Zoom %d finished ~", task.ID, layer.Zoom))
	}
}

func (task *WarmTask) warmTile(ctx context.Context, k TileKey) {
	defer func() {
		task.tileWG.Done()
		<-task.workers
	}()

	start := time.Now()
	if _, err := task.resolver.Resolve(ctx, k); err != nil {
		atomic.AddInt64(&task.failed, 1)
		task.logger.WithField("tile", k).WithError(err).Debug("warm tile failed")
		return
	}
	atomic.AddInt64(&task.fetched, 1)
	task.logger.Debugf("tile %s, %dms", k, time.Since(start).Milliseconds())
}
