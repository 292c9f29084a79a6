package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
	"github.com/AbhaySingh-33/Job-Portal/pkg/kafka"
	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
	"github.com/AbhaySingh-33/Job-Portal/services/mailer/internal/infrastructure/smtp"
	"github.com/AbhaySingh-33/Job-Portal/services/mailer/internal/service"
	kafkaTransport "github.com/AbhaySingh-33/Job-Portal/services/mailer/transport/kafka"
)

const (
	serviceName = "mail-service"
	// processingSlack is added to the SMTP send timeout so sarama does not
	// consider the partition stuck while a delivery is still within bounds.
	processingSlack = 5 * time.Second
)

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

	envFields, missing := cfg.MailerEnvReport()
	logger.Info("environment check", envFields...)
	if len(missing) > 0 {
		logger.Warn("some variables are missing", zap.Strings("missing", missing))
	}

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

	transport, err := smtp.New(cfg.SMTP, logger)
	if err != nil {
		logger.Fatal("invalid smtp configuration", zap.Error(err))
	}

	if err := transport.Verify(ctx); err != nil {
		logger.Warn("SMTP verification failed, continuing", zap.Error(err))
	} else {
		logger.Info("SMTP relay verified", zap.String("host", cfg.SMTP.Host), zap.String("security", string(transport.Security())))
	}

	client := kafka.NewClient(serviceName, cfg.Kafka, logger)
	mailService := service.NewMailService(transport, logger, m)

	consumer := kafkaTransport.NewConsumer(mailService, client, logger,
		kafka.WithRestartDelay(cfg.Kafka.RestartDelay),
		kafka.WithMaxProcessingTime(cfg.SMTP.SendTimeout+processingSlack),
		kafka.WithGroupMetrics(m),
	)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Start(ctx)
	}()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Mail Service is alive!")
	})
	m.Mount(app)

	port := cfg.HTTP.Port
	if port == "" {
		port = ":3003"
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", port))
		if err := app.Listen(port); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	logger.Info("mail service started!")

	<-ctx.Done()
	logger.Info("shutting down mail service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("consumer did not stop in time")
	}

	if err := transport.Close(); err != nil {
		logger.Error("error closing smtp transport", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error closing telemetry", zap.Error(err))
	}
}
