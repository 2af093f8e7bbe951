package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConf struct {
	Version string `mapstructure:"version"`
	Title   string `mapstructure:"title"`
}

type OutputConf struct {
	Directory      string `mapstructure:"directory"`
	LogDir         string `mapstructure:"logDir"`
	OutputTerminal bool   `mapstructure:"outputTerminal"`
}

type WindowConf struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	FPS        int    `mapstructure:"fps"`
	Background string `mapstructure:"background"`
}

type CameraConf struct {
	Lat       float64 `mapstructure:"lat"`
	Lon       float64 `mapstructure:"lon"`
	Zoom      float64 `mapstructure:"zoom"`
	MinZoom   float64 `mapstructure:"minZoom"`
	MaxZoom   float64 `mapstructure:"maxZoom"`
	ClampZoom bool    `mapstructure:"clampZoom"`
	PanX      float64 `mapstructure:"panX"`
	PanY      float64 `mapstructure:"panY"`
	ZoomSpeed float64 `mapstructure:"zoomSpeed"`
}

// TilesConf durations are in milliseconds.
type TilesConf struct {
	Name                 string `mapstructure:"name"`
	URL                  string `mapstructure:"url"`
	Format               string `mapstructure:"format"`
	CacheDir             string `mapstructure:"cacheDir"`
	TileSize             int    `mapstructure:"tileSize"`
	Buffer               int    `mapstructure:"buffer"`
	UserAgent            string `mapstructure:"userAgent"`
	From                 string `mapstructure:"from"`
	MaxRequestsPerSecond int    `mapstructure:"maxRequestsPerSecond"`
	Timeout              int    `mapstructure:"timeout"`
	RatePoll             int    `mapstructure:"ratePoll"`
	Workers              int    `mapstructure:"workers"`
	FrameTimeout         int    `mapstructure:"frameTimeout"`
	PreloadInterval      int    `mapstructure:"preloadInterval"`
}

type RunConf struct {
	Frames        int `mapstructure:"frames"`
	SnapshotEvery int `mapstructure:"snapshotEvery"`
}

type TaskConf struct {
	Workers int `mapstructure:"workers"`
	BufSize int `mapstructure:"bufSize"`
}

// LayerConf 预热区域, geojson 覆盖的瓦片在 [min, max] 级别内
type LayerConf struct {
	Min     int    `mapstructure:"min"`
	Max     int    `mapstructure:"max"`
	Geojson string `mapstructure:"geojson"`
}

type Conf struct {
	App    AppConf     `mapstructure:"app"`
	Output OutputConf  `mapstructure:"output"`
	Window WindowConf  `mapstructure:"window"`
	Camera CameraConf  `mapstructure:"camera"`
	Tiles  TilesConf   `mapstructure:"tiles"`
	Run    RunConf     `mapstructure:"run"`
	Task   TaskConf    `mapstructure:"task"`
	Lrs    []LayerConf `mapstructure:"lrs"`
}

// LoadConf 初始化配置
// A missing file is an error only when required; otherwise defaults apply.
func LoadConf(cfgFile string, required bool) (*Conf, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			if required {
				return nil, fmt.Errorf("config file(%s) not exist: %w", cfgFile, err)
			}
		} else {
			v.SetConfigType("toml")
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file(%s) error: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	conf := &Conf{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	return conf, nil
}

// 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Playing God Map")
	v.SetDefault("output.directory", "output")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("window.width", 1024)
	v.SetDefault("window.height", 768)
	v.SetDefault("window.fps", 30)
	v.SetDefault("window.background", "#dddddd")
	v.SetDefault("camera.zoom", 1.0)
	v.SetDefault("camera.minZoom", DefaultMinZoom)
	v.SetDefault("camera.maxZoom", DefaultMaxZoom)
	v.SetDefault("camera.clampZoom", true)
	v.SetDefault("tiles.name", "osm")
	v.SetDefault("tiles.url", DefaultTileURL)
	v.SetDefault("tiles.format", PNG)
	v.SetDefault("tiles.cacheDir", DefaultCacheDir)
	v.SetDefault("tiles.tileSize", TileSize)
	v.SetDefault("tiles.buffer", DefaultBufferTiles)
	v.SetDefault("tiles.userAgent", DefaultUserAgent)
	v.SetDefault("tiles.maxRequestsPerSecond", DefaultMaxRequestsPerSecond)
	v.SetDefault("tiles.timeout", 10000)
	v.SetDefault("tiles.ratePoll", int(DefaultRatePoll/time.Millisecond))
	v.SetDefault("tiles.workers", DefaultBatchWorkers)
	v.SetDefault("tiles.frameTimeout", int(DefaultFrameTimeout/time.Millisecond))
	v.SetDefault("tiles.preloadInterval", int(DefaultPreloadInterval/time.Millisecond))
	v.SetDefault("run.frames", 0)
	v.SetDefault("task.workers", 4)
	v.SetDefault("task.bufSize", 64)
}

func (c *Conf) TileServer() TileServer {
	return TileServer{Name: c.Tiles.Name, URL: c.Tiles.URL, Format: c.Tiles.Format}
}

func (c *Conf) FetcherOptions() FetcherOptions {
	return FetcherOptions{
		MaxRequestsPerSecond: c.Tiles.MaxRequestsPerSecond,
		UserAgent:            c.Tiles.UserAgent,
		From:                 c.Tiles.From,
		Timeout:              millis(c.Tiles.Timeout),
	}
}

func (c *Conf) MapOptions() MapOptions {
	return MapOptions{
		TileSize:     c.Tiles.TileSize,
		Buffer:       c.Tiles.Buffer,
		FrameTimeout: millis(c.Tiles.FrameTimeout),
		MinZoom:      c.Camera.MinZoom,
		MaxZoom:      c.Camera.MaxZoom,
		ClampZoom:    c.Camera.ClampZoom,
	}
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
