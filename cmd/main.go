// 程序入口：仅负责读取配置、初始化依赖并启动服务；路由注册在 internal/api
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"page-counter/internal/api"
	"page-counter/internal/config"
	"page-counter/internal/counter"
	"page-counter/internal/feed"
	"page-counter/internal/logger"
	"page-counter/internal/metrics"
	"page-counter/internal/middleware"
	"page-counter/internal/migrate"
	"page-counter/internal/store"
	"page-counter/internal/utils"
	"page-counter/internal/visitor"
)

func main() {
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		logger.L().Error("config_error", "err", err)
		os.Exit(1)
	}
	// 日志初始化
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	l.Debug("log_init_ok", "level", cfg.LogLevel, "format", cfg.LogFormat)
	l.Debug("config_store", "backend", cfg.StoreBackend, "timeout", cfg.StoreTimeout)

	db, err := openDB(cfg)
	if err != nil {
		l.Error("db_open_error", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok", "backend", cfg.StoreBackend)
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	if err := db.PingContext(pingCtx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	cancel()
	if err := migrate.EnsureSchema(db, cfg.StoreBackend); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	// 受信网段：文件缺失时不采信任何代理头；内容非法则拒绝启动
	trusted, err := visitor.LoadRanges(cfg.TrustedFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		l.Warn("trusted_ranges_missing", "path", cfg.TrustedFile)
	case err != nil:
		l.Error("trusted_ranges_error", "path", cfg.TrustedFile, "err", err)
		os.Exit(1)
	default:
		l.Info("trusted_ranges_loaded", "path", cfg.TrustedFile, "count", trusted.Len())
	}
	metrics.TrustedRanges.Set(float64(trusted.Len()))

	opts := counter.Options{Timeout: cfg.StoreTimeout, Logger: l}
	rc := utils.OpenRedis(cfg.Redis)
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok", "stream", cfg.Redis.Stream)
		}
		opts.Publisher = feed.NewRedisStream(rc, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
	}
	svc := counter.NewService(store.AttachDB(db), opts)

	mux := api.BuildRoutes(svc, visitor.NewResolver(trusted), l)
	mux.Handle("GET /metrics", metrics.Handler())

	var lock *middleware.OriginLock
	if cfg.Origin.Lock {
		if lock, err = middleware.NewOriginLock(trusted, cfg.Origin, l); err != nil {
			l.Error("origin_lock_error", "err", err)
			os.Exit(1)
		}
		l.Info("origin_lock_enabled", "extra", len(cfg.Origin.AllowCIDRs), "local", cfg.Origin.AllowLocal)
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimitQPS, lock)
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.StoreTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		l.Info("shutdown_begin", "timeout", cfg.ShutdownTimeout)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	<-done
	l.Info("shutdown_done")
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	if cfg.StoreBackend == config.BackendSQLite {
		return utils.OpenSQLite(cfg.SQLitePath)
	}
	return utils.OpenPostgres(cfg.Postgres)
}
