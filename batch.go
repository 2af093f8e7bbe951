package main

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchWorkers = 4
	DefaultFrameTimeout = 10 * time.Millisecond
)

// BatchResult tiles resolved before the deadline, tiles that failed, and
// tiles still in flight when the wait ended.
type BatchResult struct {
	Loaded  map[TileKey]image.Image
	Failed  []TileKey
	Pending []TileKey
}

// inflight 单个瓦片的进行中请求, done 关闭后 img/err 可读
type inflight struct {
	done chan struct{}
	img  image.Image
	err  error
}

// BatchLoader fans frame misses out onto a bounded worker pool.
type BatchLoader struct {
	resolver TileResolver
	workers  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logrus.FieldLogger

	mu      sync.Mutex
	pending map[TileKey]*inflight
}

func NewBatchLoader(resolver TileResolver, workers int, logger logrus.FieldLogger) *BatchLoader {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchLoader{
		resolver: resolver,
		workers:  make(chan struct{}, workers),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		pending:  make(map[TileKey]*inflight),
	}
}

// Load resolves keys concurrently and waits at most timeout. Resolves that
// miss the deadline are not cancelled: they finish in the background and
// land in the cache. A key still in flight from an earlier call is waited on
// again without starting anything new.
func (b *BatchLoader) Load(keys []TileKey, timeout time.Duration) BatchResult {
	keys = uniqueKeys(keys)
	res := BatchResult{Loaded: make(map[TileKey]image.Image, len(keys))}
	if len(keys) == 0 {
		return res
	}

	calls := make([]*inflight, len(keys))
	for i, k := range keys {
		calls[i] = b.start(k)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	expired := false
	for i, k := range keys {
		call := calls[i]
		if !expired {
			select {
			case <-call.done:
			case <-deadline.C:
				expired = true
			}
		}
		if expired {
			select {
			case <-call.done:
			default:
				res.Pending = append(res.Pending, k)
				continue
			}
		}
		if call.err != nil || call.img == nil {
			res.Failed = append(res.Failed, k)
			continue
		}
		res.Loaded[k] = call.img
	}
	return res
}

// Close cancels in-flight resolves. Best effort: a request already on the
// wire may still complete.
func (b *BatchLoader) Close() {
	b.cancel()
}

// InFlight 进行中的瓦片数
func (b *BatchLoader) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// start returns the in-flight call for k, launching it when there is none.
func (b *BatchLoader) start(k TileKey) *inflight {
	b.mu.Lock()
	defer b.mu.Unlock()

	if call, ok := b.pending[k]; ok {
		return call
	}
	call := &inflight{done: make(chan struct{})}
	b.pending[k] = call
	go b.resolve(k, call)
	return call
}

func (b *BatchLoader) resolve(k TileKey, call *inflight) {
	defer func() {
		b.mu.Lock()
		delete(b.pending, k)
		b.mu.Unlock()
		close(call.done)
	}()

	select {
	case b.workers <- struct{}{}:
	case <-b.ctx.Done():
		call.err = b.ctx.Err()
		return
	}
	defer func() { <-b.workers }()

	call.img, call.err = b.resolver.Resolve(b.ctx, k)
	if call.err != nil {
		b.logger.WithField("tile", k).WithError(call.err).Debug("batch resolve failed")
	}
}

func uniqueKeys(keys []TileKey) []TileKey {
	seen := make(map[TileKey]struct{}, len(keys))
	out := make([]TileKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
