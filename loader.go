package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPreloadInterval idle sleep of the background loader.
const DefaultPreloadInterval = 100 * time.Millisecond

// PreloadQueue deduplicated set of tiles to warm. Pop order is arbitrary.
type PreloadQueue struct {
	mu    sync.Mutex
	items map[TileKey]struct{}
}

func NewPreloadQueue() *PreloadQueue {
	return &PreloadQueue{items: make(map[TileKey]struct{})}
}

// Add returns false when k was already queued.
func (q *PreloadQueue) Add(k TileKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[k]; ok {
		return false
	}
	q.items[k] = struct{}{}
	return true
}

func (q *PreloadQueue) Pop() (TileKey, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for k := range q.items {
		delete(q.items, k)
		return k, true
	}
	return TileKey{}, false
}

func (q *PreloadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type LoaderState int

const (
	LoaderIdle LoaderState = iota
	LoaderRunning
	LoaderCancelled
)

func (s LoaderState) String() string {
	switch s {
	case LoaderIdle:
		return "idle"
	case LoaderRunning:
		return "running"
	case LoaderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Preloader is what a frame needs from the background loader.
type Preloader interface {
	PreloadSurrounding(x, y, zoom int)
	EnsureRunning(ctx context.Context)
	Stop()
}

// BackgroundLoader drains the preload queue one tile at a time, off the
// frame path, through the same resolver the frames use.
type BackgroundLoader struct {
	queue    *PreloadQueue
	resolver TileResolver
	interval time.Duration
	logger   logrus.FieldLogger

	mu     sync.Mutex
	state  LoaderState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBackgroundLoader(resolver TileResolver, interval time.Duration, logger logrus.FieldLogger) *BackgroundLoader {
	if interval <= 0 {
		interval = DefaultPreloadInterval
	}
	return &BackgroundLoader{
		queue:    NewPreloadQueue(),
		resolver: resolver,
		interval: interval,
		logger:   logger,
	}
}

func (l *BackgroundLoader) Queue() *PreloadQueue {
	return l.queue
}

func (l *BackgroundLoader) AddToQueue(k TileKey) {
	l.queue.Add(k)
}

// PreloadSurrounding queues the 8 neighbours of (x, y). Tiles already in
// memory and tiles off the grid are not queued.
func (l *BackgroundLoader) PreloadSurrounding(x, y, zoom int) {
	for _, k := range (TileKey{X: x, Y: y, Z: zoom}).Neighbors() {
		if !k.Valid() {
			continue
		}
		if _, ok := l.resolver.Cached(k); ok {
			continue
		}
		l.queue.Add(k)
	}
}

// EnsureRunning starts the loop unless it is already running. A stopped
// loader stays stopped.
func (l *BackgroundLoader) EnsureRunning(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != LoaderIdle {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.state = LoaderRunning
	go l.run(ctx, l.done)
	l.logger.Info("background loader started")
}

// Stop cancels the loop and waits for it to exit.
func (l *BackgroundLoader) Stop() {
	l.mu.Lock()
	prev := l.state
	l.state = LoaderCancelled
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if prev != LoaderRunning {
		return
	}
	cancel()
	<-done
	l.logger.Info("background loader stopped")
}

func (l *BackgroundLoader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *BackgroundLoader) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		l.mu.Lock()
		l.state = LoaderCancelled
		l.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if k, ok := l.queue.Pop(); ok {
			if _, err := l.resolver.Resolve(ctx, k); err != nil {
				l.logger.WithField("tile", k).WithError(err).Debug("preload tile failed")
			}
			continue
		}

		t := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
