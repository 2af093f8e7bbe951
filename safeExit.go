package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// SafeExit 退出时需要执行的清理函数
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	once  sync.Once
}

func NewSafeExit() *SafeExit {
	return new(SafeExit)
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Run executes the registered funcs once, last registered first.
func (s *SafeExit) Run() {
	s.once.Do(func() {
		s.mu.Lock()
		funcs := append([]func(){}, s.funcs...)
		s.mu.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			funcs[i]()
		}
	})
}

// ListenSignal cancels the run on the first signal and forces an exit on the second.
func (s *SafeExit) ListenSignal(ctx context.Context, cancel context.CancelFunc, log logrus.FieldLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		log.Infof("收到系统信号 %v, 正在停止任务, 请稍后", sig)
		cancel()
	case <-ctx.Done():
		return
	}

	sig := <-sigs
	log.Warnf("收到系统信号 %v, 强制退出", sig)
	os.Exit(1)
}
