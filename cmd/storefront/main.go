package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/client"
	"github.com/fjod/go_cart/storefront/internal/config"
	storegrpc "github.com/fjod/go_cart/storefront/internal/grpc"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logr.Sync()
	zap.ReplaceGlobals(logr)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	api := client.New(client.Config{
		BaseURL:      cfg.API.BaseURL,
		CDNURL:       cfg.API.CDNURL,
		Timeout:      cfg.API.Timeout,
		MaxFailures:  cfg.API.BreakerFailures,
		OpenInterval: cfg.API.BreakerOpenDelay,
	}, logr.Named("weblarek"))

	var source catalog.ProductSource = api
	var cached *cache.CachedSource
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logr.Fatal("Redis connection failed", zap.Error(err))
		}
		logr.Info("Redis ping succeeded", zap.String("addr", cfg.Redis.Addr))

		cached = cache.NewCachedSource(api, cache.NewRedisCache(redisClient, cfg.Redis.TTL), logr.Named("cache"))
		source = cached
	}

	var hooks []storefront.Subscriber
	var receipts *repository.Repository
	if cfg.Journal.Enabled {
		receipts, err = repository.NewRepository(cfg.Journal.Path)
		if err != nil {
			logr.Fatal("Failed to open journal", zap.Error(err))
		}
		defer receipts.Close()
		if err := receipts.RunMigrations(cfg.Journal.MigrationsPath); err != nil {
			logr.Fatal("Failed to run migrations", zap.Error(err))
		}
		hooks = append(hooks, repository.NewJournal(receipts, cfg.Journal.Timeout, logr.Named("journal")))
		logr.Info("Receipt journal ready", zap.String("path", cfg.Journal.Path))
	}

	if cfg.Kafka.Enabled {
		pub := publisher.NewPublisher(logr.Named("publisher"), cfg.Kafka.Brokers...)
		pub.Start(ctx)
		// runs after stop() below; waits for the final flush
		defer pub.Close()
		hooks = append(hooks, pub)

		if cached != nil {
			p := poller.NewPoller(cached, logr.Named("poller"), cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
			defer p.Close()
			go p.Run(ctx)
		}
		logr.Info("Kafka enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	var m *metrics.Metrics
	if cfg.HTTP.Metrics {
		m = metrics.New()
		hooks = append(hooks, m)
	}

	manager := storefront.NewManager(source, api, storefront.Options{
		SubmitTimeout: cfg.Session.SubmitTimeout,
		IdleTTL:       cfg.Session.IdleTTL,
		MaxSessions:   cfg.Session.MaxSessions,
	}, logr.Named("sessions"), hooks...)
	defer manager.CloseAll()
	go manager.RunJanitor(ctx, cfg.Session.SweepInterval)
	if m != nil {
		m.RegisterSessions(manager.Len)
	}

	// gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPC.Port))
	if err != nil {
		logr.Fatal("Failed to listen", zap.Error(err))
	}
	healthServer := storegrpc.NewHealthServer(logr.Named("health"))
	go func() {
		logr.Info("Health service listening", zap.String("port", cfg.GRPC.Port))
		if err := healthServer.Serve(lis); err != nil {
			logr.Error("Health server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := healthServer.WarmUp(ctx, source, cfg.GRPC.WarmUpRetry); err != nil && !errors.Is(err, context.Canceled) {
			logr.Warn("Warm-up aborted", zap.Error(err))
		}
	}()

	routerCfg := h.RouterConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		Metrics:            m,
	}
	if cfg.HTTP.SessionRate > 0 {
		limiter := h.NewRateLimiter(cfg.HTTP.SessionRate, cfg.HTTP.SessionBurst)
		routerCfg.SessionLimiter = limiter
		go func() {
			ticker := time.NewTicker(cfg.Session.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case now := <-ticker.C:
					limiter.Cleanup(now.Add(-10 * time.Minute))
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	var handler http.Handler
	if receipts != nil {
		handler = h.NewRouter(routerCfg, manager, receipts, logr.Named("http"))
	} else {
		handler = h.NewRouter(routerCfg, manager, nil, logr.Named("http"))
	}

	// No WriteTimeout: the event stream is long-lived and the API routes are
	// bounded by the router's timeout middleware.
	srv := &http.Server{
		Addr:        ":" + cfg.HTTP.Port,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logr.Info("Storefront starting", zap.String("port", cfg.HTTP.Port), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	healthServer.GracefulStop()
	stop()

	logr.Info("server exited")
}
