package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化控制台
	InitFlag()
	// 初始化配置
	conf, err := LoadConf(configPath, configExplicit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// 初始化日志
	log, err := InitLog(conf.Output, logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 开始安全退出任务
	safeExit := NewSafeExit()
	go safeExit.ListenSignal(ctx, cancel, log)

	cache, err := NewTileCache(conf.Tiles.CacheDir, log)
	if err != nil {
		log.Fatalf("tile cache init failed: %v", err)
	}
	fetcher := NewTileFetcher(conf.FetcherOptions(), log)
	coordinator := NewTileCoordinator(cache, fetcher, conf.TileServer(), millis(conf.Tiles.RatePoll), log)

	switch runMode {
	case ModeWarm:
		safeExit.Register(coordinator.Close)
		err = runWarm(ctx, conf, coordinator, cache, safeExit, log)
	case ModeView:
		err = runView(ctx, conf, coordinator, safeExit, log)
	default:
		err = fmt.Errorf("unknown mode %q", runMode)
	}
	safeExit.Run()
	if err != nil {
		log.Fatal(err)
	}
}

func runView(ctx context.Context, conf *Conf, coordinator *TileCoordinator, safeExit *SafeExit, log *logrus.Logger) error {
	loader := NewBackgroundLoader(coordinator, millis(conf.Tiles.PreloadInterval), log)
	batch := NewBatchLoader(coordinator, conf.Tiles.Workers, log)
	maps := NewMapManager(conf.MapOptions(), coordinator, loader, batch, log)
	safeExit.Register(maps.Cleanup)

	viewport := NewViewport(conf.Window.Width, conf.Window.Height)
	x, y := LatLonToWorld(orb.Point{conf.Camera.Lon, conf.Camera.Lat}, conf.Tiles.TileSize)
	camera := &Camera{
		X:         x,
		Y:         y,
		Zoom:      conf.Camera.Zoom,
		PanX:      conf.Camera.PanX,
		PanY:      conf.Camera.PanY,
		ZoomSpeed: conf.Camera.ZoomSpeed,
	}

	loop := NewFrameLoop(LoopOptions{
		FPS:           conf.Window.FPS,
		Frames:        conf.Run.Frames,
		SnapshotEvery: conf.Run.SnapshotEvery,
		OutputDir:     conf.Output.Directory,
		Background:    parseHexColor(conf.Window.Background),
	}, camera, viewport, maps, log)
	log.Infof("%s %s", conf.App.Title, conf.App.Version)
	return loop.Run(ctx)
}

func runWarm(ctx context.Context, conf *Conf, coordinator *TileCoordinator, cache *TileCache, safeExit *SafeExit, log *logrus.Logger) error {
	layers, err := LoadLayers(conf.Lrs)
	if err != nil {
		return err
	}
	if len(layers) == 0 {
		return fmt.Errorf("no layers configured for warm mode")
	}

	task := NewWarmTask(conf.Tiles.Name, layers, coordinator, cache, conf.Task.Workers, conf.Task.BufSize, log)
	task.ShowBar = conf.Output.OutputTerminal
	// 注册安全退出
	safeExit.Register(task.Abort)

	stats := task.Run(ctx)
	if stats.Failed > 0 {
		log.Warnf("%d tiles failed, run again to retry them", stats.Failed)
	}
	return nil
}
