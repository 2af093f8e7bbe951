package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRequestsPerSecond = 2
	DefaultUserAgent            = "maptiler/0.1.0 (population sandbox backdrop)"
	rateWindow                  = time.Second
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrEmptyTile        = errors.New("empty tile body")
)

type FetcherOptions struct {
	MaxRequestsPerSecond int
	UserAgent            string
	From                 string
	Timeout              time.Duration
	Client               *http.Client
	Clock                func() time.Time
}

// TileFetcher 瓦片下载器
// It never queues or blocks for rate limiting itself: callers poll
// IsRateLimited and back off before calling Fetch.
type TileFetcher struct {
	client    *http.Client
	userAgent string
	from      string
	maxPerSec int
	now       func() time.Time
	logger    logrus.FieldLogger

	mu       sync.Mutex
	requests []time.Time
}

func NewTileFetcher(opts FetcherOptions, logger logrus.FieldLogger) *TileFetcher {
	if opts.MaxRequestsPerSecond <= 0 {
		opts.MaxRequestsPerSecond = DefaultMaxRequestsPerSecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &TileFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		from:      opts.From,
		maxPerSec: opts.MaxRequestsPerSecond,
		now:       opts.Clock,
		logger:    logger,
	}
}

// IsRateLimited prunes admissions older than the window and reports whether
// the window is full.
func (f *TileFetcher) IsRateLimited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	kept := f.requests[:0]
	for _, t := range f.requests {
		if now.Sub(t) < rateWindow {
			kept = append(kept, t)
		}
	}
	f.requests = kept
	return len(f.requests) >= f.maxPerSec
}

// Fetch issues one GET. Only a 200 with a body consumes rate budget.
func (f *TileFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	log := f.logger.WithField("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.from != "" {
		req.Header.Set("From", f.from)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("fetch tile failed")
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("fetch tile failed")
		return nil, fmt.Errorf("fetch %s: %w: %d", url, ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("read tile body failed")
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) == 0 {
		log.Debug("nil tile")
		return nil, fmt.Errorf("fetch %s: %w", url, ErrEmptyTile)
	}

	f.admit()

	log.WithFields(logrus.Fields{
		"ms": time.Since(start).Milliseconds(),
		"kb": float32(len(body)) / 1024.0,
	}).Debug("tile fetched")
	return body, nil
}

// Admissions number of successful requests still inside the window.
func (f *TileFetcher) Admissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Close drops pooled connections.
func (f *TileFetcher) Close() {
	f.client.CloseIdleConnections()
}

func (f *TileFetcher) admit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, f.now())
}
