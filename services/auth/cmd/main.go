package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
	"github.com/AbhaySingh-33/Job-Portal/pkg/cooldown"
	"github.com/AbhaySingh-33/Job-Portal/pkg/kafka"
	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/AbhaySingh-33/Job-Portal/pkg/notification"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
	"github.com/AbhaySingh-33/Job-Portal/services/auth/internal/service"
	httpTransport "github.com/AbhaySingh-33/Job-Portal/services/auth/internal/transport/http"
)

const serviceName = "auth-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using system envs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := config.NewLogger(cfg.LoggerConfig(serviceName))
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, utils.TracerConfig{
		ServiceName: serviceName,
		Env:         cfg.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("Error init tracer", zap.Error(err))
	}

	m := metrics.New(serviceName)

	client := kafka.NewClient(serviceName, cfg.Kafka, logger)
	producer := kafka.NewProducer(client, logger,
		kafka.WithTopics(kafka.SingleTopic(notification.Topic)),
		kafka.WithSupervisor(kafka.NewSupervisor(serviceName+"-producer", cfg.Kafka.ConnectMaxAttempts, logger, m)),
	)

	// The HTTP surface comes up without waiting for the broker; publishes
	// before the first successful connect are logged and dropped.
	go func() {
		if err := producer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("kafka producer did not connect", zap.Error(err))
		}
	}()

	limiter, err := cooldown.Open(ctx, cfg.Redis, cfg.Notify.Cooldown, logger)
	if err != nil {
		logger.Warn("redis unavailable, notification cooldown disabled", zap.Error(err))
	}

	publisher := notification.NewPublisher(producer, serviceName, logger,
		notification.WithCooldown(limiter),
		notification.WithMetrics(m),
	)

	notifyService := service.NewNotificationService(publisher, cfg.Frontend.URL, logger)
	notifyHandler := httpTransport.NewNotifyHandler(notifyService, logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.Timeout,
		WriteTimeout:          cfg.HTTP.Timeout,
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Auth Service is alive!")
	})
	m.Mount(app)
	httpTransport.RegisterRoutes(app, notifyHandler)

	port := cfg.HTTP.Port
	if port == "" {
		port = ":3001"
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", port))
		if err := app.Listen(port); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	logger.Info("auth service started!")

	<-ctx.Done()
	logger.Info("shutting down auth service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}

	if err := producer.Close(); err != nil {
		logger.Error("error closing kafka producer", zap.Error(err))
	}

	if err := limiter.Close(); err != nil {
		logger.Error("error closing redis", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error closing telemetry", zap.Error(err))
	}
}
