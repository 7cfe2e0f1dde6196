package tracking

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	trackservice "git.platform.alem.school/amibragim/bazaar/internal/app/tracking"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/config"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	pg "git.platform.alem.school/amibragim/bazaar/internal/shared/postgres"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// Run wires the read-only tracking service and blocks until ctx is cancelled.
func Run(ctx context.Context, port int) error {
	logger := logger.NewLogger("tracking-service")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err)
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "store_init_failed", "Failed to initialize store backend", err)
		return err
	}
	defer closeStore()

	svc := trackservice.NewService(st, logger, cfg.Storefront.SLAGraceMinutes)

	mux := http.NewServeMux()
	trackservice.NewHandler(logger, svc).Register(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracking Service started on port %d", port),
		map[string]any{"port": port, "storage": cfg.Storage.Backend},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// openStore builds the configured store backend and returns a close func.
// The memory backend is useless here (it cannot see the storefront's
// records), so it is allowed only for local experiments.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		r, err := store.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Storage.CapacityBytes)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil

	case "postgres":
		pool, err := pg.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(pool, cfg.Storage.CapacityBytes), pool.Close, nil

	default:
		log.Warn(ctx, "memory_backend", "tracking over the memory backend sees only its own writes", nil)
		return store.NewMemory(cfg.Storage.CapacityBytes), func() {}, nil
	}
}
