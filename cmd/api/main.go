// Command api runs the jobboard payments HTTP API: webhook ingestion from
// the payment gateway, the webhook history endpoints, and the health check.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"jobboard/internal/config"
	"jobboard/internal/core"
	"jobboard/internal/db"
	"jobboard/internal/external"
	"jobboard/internal/lock"
	"jobboard/internal/notifications"
	"jobboard/internal/webhooks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("service", cfg.Service),
		slog.String("environment", cfg.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Unmask(),
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	locker := lock.NewRedisLocker(redisClient, cfg.Webhook.LockTTL)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		return fmt.Errorf("loading aws configuration: %w", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Queue.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.Queue.EndpointURL)
		}
	})
	notifier := notifications.NewQueueNotifier(sqsClient, cfg.Queue.NotificationQueueURL, logger)

	baseClient := external.NewBaseClient(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		"payment-gateway",
		external.DefaultRetryPolicy(),
		cfg.Service+"/1.0",
	)
	gateway := external.NewGatewayClient(baseClient, cfg.Gateway.BaseURL, cfg.Gateway.AccessToken, cfg.Gateway.Timeout)

	webhookRepo := db.NewWebhookRepo(pool, logger)
	paymentRepo := db.NewPaymentRepo(pool, logger)
	orderRepo := db.NewOrderRepo(pool, logger)
	subscriptionRepo := db.NewSubscriptionRepo(pool, logger)

	service := webhooks.NewService(
		webhooks.NewVerifier(cfg.Webhook.Secret, cfg.IsProduction(), logger),
		locker,
		webhookRepo,
		gateway,
		gateway,
		webhooks.NewReconciler(paymentRepo, orderRepo, subscriptionRepo, logger),
		webhooks.NewSideEffects(notifier, orderRepo, logger),
		logger,
	)
	handler := webhooks.NewHandler(service, cfg.IsProduction(), logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	srv.Registrars = append(srv.Registrars, handler.Routes)
	srv.MountRoutes()

	srv.OnShutdown(func(context.Context) error {
		return redisClient.Close()
	})
	srv.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})

	return runHTTPServer(ctx, cfg, logger, srv)
}

// runHTTPServer serves until the context is cancelled by a termination
// signal, then drains in-flight requests and closes resources.
func runHTTPServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, srv *core.Server) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("draining http server: %w", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
