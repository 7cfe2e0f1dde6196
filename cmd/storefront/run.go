package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	chatservice "git.platform.alem.school/amibragim/bazaar/internal/app/chat"
	notifservice "git.platform.alem.school/amibragim/bazaar/internal/app/notification"
	orderservice "git.platform.alem.school/amibragim/bazaar/internal/app/orderstate"
	"git.platform.alem.school/amibragim/bazaar/internal/ports"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/bus"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/config"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	pg "git.platform.alem.school/amibragim/bazaar/internal/shared/postgres"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/rabbitmq"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/store"
)

// Run wires the storefront service and blocks until ctx is cancelled.
// It returns the first terminal error (server or startup failure).
func Run(ctx context.Context, port int, maxConcurrent int) error {
	logger := logger.NewLogger("storefront")

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

	eventBus := bus.New()

	// RabbitMQ links other processes; without it the storefront still works
	// single-process, so a connect failure only degrades.
	var transport *rabbitmq.Transport
	rmq, err := rabbitmq.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Warn(ctx, "rabbitmq_unavailable", "running without real-time transport",
			map[string]any{"error": err.Error()})
	} else {
		defer rmq.Close()
		transport = rabbitmq.NewTransport(rmq)
	}

	// application services share the bus and the bounded store
	orders := orderservice.New(st, eventBus, asTransport(transport), logger)

	inbox := notifservice.New(st, eventBus, logger, cfg.Storefront.NotificationCap)
	inbox.SubscribeToOrders(eventBus)

	tracker := chatservice.NewTracker(eventBus, time.Duration(cfg.Storefront.TypingTTLSeconds)*time.Second)
	chat := chatservice.New(st, eventBus, asTransport(transport), logger, tracker, chatservice.Config{
		HistoryCap:    cfg.Storefront.ChatHistoryCap,
		TruncateTo:    cfg.Storefront.ChatTruncateTo,
		ImageMaxBytes: cfg.Storefront.ChatImageMaxBytes,
	})

	mux := http.NewServeMux()
	orderservice.NewHTTPHandler(orders, logger).Register(mux)
	notifservice.NewHTTPHandler(inbox, logger).Register(mux)
	chatservice.NewHTTPHandler(chat, logger).Register(mux)

	// Concurrency limiter (global) — blocks when capacity is full.
	handler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// mirror chat traffic published by peer storefront processes
	if rmq != nil {
		go consumeChat(ctx, rmq, logger, chat)
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Storefront started on port %d", port),
		map[string]any{"port": port, "max_concurrent": maxConcurrent, "storage": cfg.Storage.Backend},
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
		// drain keep-alives and in-flight requests
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// consumeChat binds an exclusive queue to the chat exchange and applies
// peer messages and typing signals.
func consumeChat(ctx context.Context, rmq *rabbitmq.Client, log *logger.Logger, chat *chatservice.Service) {
	rabbitmq.ConsumeForever(ctx, rmq, log, "", rabbitmq.ChatExchange, "chat.#", 1,
		func(ctx context.Context, routingKey string, body []byte) error {
			switch {
			case strings.HasSuffix(routingKey, ".message"):
				var env contracts.ChatMessageEnvelope
				if err := json.Unmarshal(body, &env); err != nil {
					return err
				}
				return chat.HandleIncomingMessage(ctx, env)
			case strings.HasSuffix(routingKey, ".typing"):
				var sig contracts.TypingSignal
				if err := json.Unmarshal(body, &sig); err != nil {
					return err
				}
				chat.HandleIncomingTyping(sig)
				return nil
			default:
				return nil // unknown key, drop
			}
		})
}

// openStore builds the configured store backend and returns a close func.
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
		return store.NewMemory(cfg.Storage.CapacityBytes), func() {}, nil
	}
}

// asTransport converts a possibly-nil concrete transport to the interface
// without producing a non-nil interface around a nil pointer.
func asTransport(t *rabbitmq.Transport) ports.Transport {
	if t == nil {
		return nil
	}
	return t
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It blocks until capacity is available, which provides natural backpressure.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}        // acquire
		defer func() { <-sem }() // release
		next.ServeHTTP(w, r)
	})
}
