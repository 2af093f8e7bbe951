package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultRatePoll delay between rate limiter checks.
const DefaultRatePoll = 100 * time.Millisecond

// ErrTileOutOfRange key lies outside the slippy map grid; it is never requested.
var ErrTileOutOfRange = errors.New("tile out of range")

// TileResolver is the fetch-or-cache path shared by frames and preloading.
type TileResolver interface {
	Cached(k TileKey) (image.Image, bool)
	Resolve(ctx context.Context, k TileKey) (image.Image, error)
}

// TileCoordinator memory -> disk -> network, with cooperative rate limiting.
type TileCoordinator struct {
	cache    *TileCache
	fetcher  *TileFetcher
	server   TileServer
	ratePoll time.Duration
	logger   logrus.FieldLogger
	group    singleflight.Group
}

func NewTileCoordinator(cache *TileCache, fetcher *TileFetcher, server TileServer, ratePoll time.Duration, logger logrus.FieldLogger) *TileCoordinator {
	if ratePoll <= 0 {
		ratePoll = DefaultRatePoll
	}
	return &TileCoordinator{
		cache:    cache,
		fetcher:  fetcher,
		server:   server,
		ratePoll: ratePoll,
		logger:   logger,
	}
}

// Cached memory-only lookup, no I/O.
func (c *TileCoordinator) Cached(k TileKey) (image.Image, bool) {
	return c.cache.GetFromMemory(k)
}

// Resolve returns the tile from the first tier that has it. Concurrent
// resolves of one key share a single network request.
func (c *TileCoordinator) Resolve(ctx context.Context, k TileKey) (image.Image, error) {
	if img, ok := c.cache.Get(k); ok {
		return img, nil
	}
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrTileOutOfRange, k)
	}

	v, err, shared := c.group.Do(k.String(), func() (interface{}, error) {
		if img, ok := c.cache.GetFromMemory(k); ok {
			return img, nil
		}
		if err := c.waitForBudget(ctx); err != nil {
			return nil, err
		}
		data, err := c.fetcher.Fetch(ctx, c.server.GetTileURL(k))
		if err != nil {
			return nil, err
		}
		return c.cache.Put(k, data)
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{"tile": k, "shared": shared}).WithError(err).Debug("resolve tile failed")
		return nil, err
	}
	img, _ := v.(image.Image)
	return img, nil
}

func (c *TileCoordinator) Close() {
	c.fetcher.Close()
}

func (c *TileCoordinator) waitForBudget(ctx context.Context) error {
	for c.fetcher.IsRateLimited() {
		t := time.NewTimer(c.ratePoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
