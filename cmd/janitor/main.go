// Command janitor purges expired pastes once. Inside AWS Lambda it serves
// scheduled EventBridge invocations instead, since a Lambda-hosted API has
// no background loop to do it.
package main

import (
	"context"
	"fmt"
	"os"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/johnwmail/npaste/config"
	"github.com/johnwmail/npaste/internal/events"
	applog "github.com/johnwmail/npaste/internal/log"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/storage"
	"go.uber.org/zap"
)

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

type sweepResult struct {
	Purged int64 `json:"purged"`
}

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := applog.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	store, err := storage.NewStore(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("storage_type", cfg.StorageType), zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURI != "" {
		if pub, err := events.NewRabbitMQPublisher(cfg.AMQPURI, logger); err != nil {
			logger.Warn("paste events disabled", zap.Error(err))
		} else {
			publisher = pub
			defer func() { _ = pub.Close() }()
		}
	}

	janitor := services.NewJanitor(store, publisher, cfg.CleanupInterval, logger)

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(scheduledHandler(janitor, logger))
		return
	}

	n, err := janitor.Sweep(ctx)
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("sweep complete", zap.Int64("purged", n))
}

func scheduledHandler(s sweeper, logger *zap.Logger) func(context.Context, lambdaevents.CloudWatchEvent) (sweepResult, error) {
	return func(ctx context.Context, event lambdaevents.CloudWatchEvent) (sweepResult, error) {
		n, err := s.Sweep(ctx)
		if err != nil {
			logger.Error("scheduled sweep failed", zap.String("event_id", event.ID), zap.Error(err))
			return sweepResult{}, err
		}
		logger.Info("scheduled sweep complete", zap.String("event_id", event.ID), zap.Int64("purged", n))
		return sweepResult{Purged: n}, nil
	}
}
