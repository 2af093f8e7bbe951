package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultCacheDir 磁盘缓存目录
const DefaultCacheDir = "~/.map_cache"

// ErrDecodeTile tile bytes could not be decoded into an image.
var ErrDecodeTile = errors.New("decode tile")

// TileCache memory tier over a disk directory. The memory tier grows without
// eviction; once a tile is loaded it is never read from disk again.
type TileCache struct {
	mu     sync.RWMutex
	tiles  map[TileKey]image.Image
	dir    string
	logger logrus.FieldLogger
}

// NewTileCache creates dir if needed. A failure here is a startup failure.
func NewTileCache(dir string, logger logrus.FieldLogger) (*TileCache, error) {
	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &TileCache{
		tiles:  make(map[TileKey]image.Image),
		dir:    dir,
		logger: logger,
	}, nil
}

func (c *TileCache) Dir() string {
	return c.dir
}

// CachePath {dir}/tile_{zoom}_{x}_{y}.png
func (c *TileCache) CachePath(k TileKey) string {
	return filepath.Join(c.dir, fmt.Sprintf("tile_%d_%d_%d.%s", k.Z, k.X, k.Y, PNG))
}

// Get checks memory, then disk. A disk hit is promoted into memory.
func (c *TileCache) Get(k TileKey) (image.Image, bool) {
	if img, ok := c.GetFromMemory(k); ok {
		return img, true
	}
	return c.GetFromDisk(k)
}

func (c *TileCache) GetFromMemory(k TileKey) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, ok := c.tiles[k]
	return img, ok
}

// GetFromDisk decodes the disk entry for k. A corrupt file is reported as a
// miss and left in place.
func (c *TileCache) GetFromDisk(k TileKey) (image.Image, bool) {
	path := c.CachePath(k)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithFields(logrus.Fields{"tile": k, "path": path}).WithError(err).Warn("read cached tile failed")
		}
		return nil, false
	}

	img, err := decodeTile(data)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"tile": k, "path": path}).WithError(err).Warn("cached tile is corrupt")
		return nil, false
	}

	c.setMemory(k, img)
	return img, true
}

// OnDisk reports whether a disk entry exists without decoding it.
func (c *TileCache) OnDisk(k TileKey) bool {
	_, err := os.Stat(c.CachePath(k))
	return err == nil
}

// Put decodes data, mirrors the raw bytes to disk and stores the image in
// memory. A failed disk write is logged; the decoded image is still cached
// in memory and returned.
func (c *TileCache) Put(k TileKey, data []byte) (image.Image, error) {
	img, err := decodeTile(data)
	if err != nil {
		return nil, err
	}

	if err := c.writeFile(k, data); err != nil {
		c.logger.WithField("tile", k).WithError(err).Warn("save tile to disk cache failed")
	}

	c.setMemory(k, img)
	return img, nil
}

// Len number of tiles resident in memory.
func (c *TileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles)
}

func (c *TileCache) setMemory(k TileKey, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles[k] = img
}

func (c *TileCache) writeFile(k TileKey, data []byte) error {
	path := c.CachePath(k)

	// Write atomically
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func decodeTile(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTile, err)
	}
	return img, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
