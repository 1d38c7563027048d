package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-match-server/internal/archive"
	appcfg "github.com/park285/cheese-match-server/internal/config"
	"github.com/park285/cheese-match-server/internal/gateway"
	"github.com/park285/cheese-match-server/internal/match"
	"github.com/park285/cheese-match-server/internal/msgcat"
	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/internal/roomindex"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	lg := obslog.L()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		lg.Fatal("messages_load_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional sinks. Interface vars stay nil unless configured.
	var (
		rdb     *redis.Client
		store   *roomindex.Store
		repo    *archive.Repository
		index   match.RoomIndex
		results match.ResultArchive
		cluster gateway.ClusterLister
	)
	if cfg.RedisURL != "" {
		rdb, err = roomindex.Connect(ctx, cfg.RedisURL)
		if err != nil {
			lg.Fatal("redis_connect_error", zap.Error(err))
		}
		store = roomindex.NewStore(rdb, nodeName(), roomindex.DefaultTTL)
		index, cluster = store, store
	}
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			lg.Fatal("db_connect_error", zap.Error(err))
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			lg.Fatal("db_schema_error", zap.Error(err))
		}
		results = repo
	}

	observer := match.NewAsyncObserver(index, results, 0)
	observer.Start(context.Background())

	hub := gateway.NewHub()
	mgr := match.NewManager(hub,
		match.WithCatalog(msgs),
		match.WithObserver(observer),
		match.WithMaxIDAttempts(cfg.RoomIDMaxAttempts),
	)
	srv := gateway.NewServer(hub, mgr, gateway.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Version:        cfg.Version,
		SendQueueSize:  cfg.SendQueueSize,
		Catalog:        msgs,
		Cluster:        cluster,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		match.NewSweeper(mgr, cfg.SweepInterval, cfg.IdleTimeout).Run(sweepCtx)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		lg.Info("server_listen",
			zap.String("addr", cfg.Addr()),
			zap.Strings("origins", cfg.AllowedOrigins),
			zap.Bool("room_index", store != nil),
			zap.Bool("archive", repo != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		lg.Info("server_shutdown_signal")
	case err := <-serveErr:
		if err != nil {
			lg.Error("server_listen_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopSweep()
	<-sweepDone
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http_shutdown_error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("gateway_shutdown_error", zap.Error(err))
	}
	observer.Stop()
	if store != nil {
		if n, err := store.Purge(shutdownCtx); err != nil {
			lg.Warn("room_index_purge_error", zap.Error(err))
		} else {
			lg.Info("room_index_purge", zap.Int("removed", n))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = repo.Close()
	lg.Info("server_stopped")
}

func nodeName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "match"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
