package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mediagrab/internal/cleanup"
	"mediagrab/internal/config"
	"mediagrab/internal/engine"
	apphttp "mediagrab/internal/http"
	"mediagrab/internal/proxy"
	"mediagrab/internal/registry"
	"mediagrab/internal/repository/sqlite"
	"mediagrab/internal/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tempDir := cfg.Download.TempDir
	ownTempDir := false
	if tempDir == "" {
		tempDir, err = os.MkdirTemp("", "mediagrab_")
		if err != nil {
			logger.Fatalf("create temp dir: %v", err)
		}
		ownTempDir = true
	} else if err := os.MkdirAll(tempDir, 0o755); err != nil {
		logger.Fatalf("create temp dir: %v", err)
	}
	logger.Infof("temporary files will be stored in: %s", tempDir)

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	cacheRepo := sqlite.NewMediaCacheRepository(db)
	if err := cacheRepo.Init(ctx); err != nil {
		logger.Fatalf("init media cache repository: %v", err)
	}

	reg := registry.New(logger)
	proxySel := proxy.NewSelector(proxy.Config{
		Enabled:  cfg.Proxy.Enabled,
		Host:     cfg.Proxy.Host,
		Port:     cfg.Proxy.Port,
		Username: cfg.Proxy.Username,
		Password: cfg.Proxy.Password,
	}, logger)

	eng := engine.NewYtDlp(engine.YtDlpConfig{
		Bin:              cfg.Engine.BinPath,
		SocketTimeout:    cfg.Engine.SocketTimeout,
		Retries:          cfg.Engine.Retries,
		ExtractorRetries: cfg.Engine.ExtractorRetries,
		Logger:           logger,
	})

	wrk := worker.New(reg, eng, proxySel, tempDir, logger)

	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	sweeper := cleanup.NewSweeper(
		tempDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		logger,
	)
	sweeper.Prune = func(ctx context.Context) error {
		return cacheRepo.Prune(ctx, cacheTTL)
	}
	sweeper.Start()
	logger.Info("scheduled temp file cleanup job")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Config{
		Registry: reg,
		Worker:   wrk,
		Engine:   eng,
		Cache:    cacheRepo,
		Proxy:    proxySel,
		CacheTTL: cacheTTL,
		Logger:   logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	sweeper.Stop()

	if ownTempDir {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Errorf("remove temp directory on shutdown: %v", err)
		} else {
			logger.Infof("removed temp directory on shutdown: %s", tempDir)
		}
	}

	logger.Info("bye")
}
