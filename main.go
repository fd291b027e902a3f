package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/lifecycle"
	"minilobby/server"
)

// minilobby 入口：加载配置，启动 HTTP + WebSocket 服务与空闲回收协程
func main() {
	configPath := flag.String("config", "", "path to YAML config file (empty = defaults + LOBBY_* env)")
	addr := flag.String("addr", "", "override server.addr, e.g. :8080")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := server.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mgr := server.NewManager(cfg.Game, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewMux(mgr, cfg.Server, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := lifecycle.New(logger, 10*time.Second)
	lc.Add("http", &lifecycle.FuncService{
		StartFn: func() error {
			logger.Info("minilobby listening", zap.String("addr", cfg.Server.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func(ctx context.Context) error {
			// 先断开所有会话，再关闭监听（被劫持的 WebSocket 连接不受 Shutdown 管理）
			mgr.Shutdown()
			return srv.Shutdown(ctx)
		},
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	lc.Add("sweeper", &lifecycle.FuncService{
		StartFn: func() error { return mgr.RunSweeper(sweepCtx) },
		StopFn: func(context.Context) error {
			stopSweep()
			return nil
		},
	})

	if err := lc.Run(context.Background()); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}
