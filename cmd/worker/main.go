// Package main runs the notification dispatch worker.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfreiras/menuflow/internal/config"
	"github.com/mfreiras/menuflow/internal/messaging"
	"github.com/mfreiras/menuflow/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load[config.Worker]()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	notificationHandler := worker.NewNotificationHandler(cfg.NotifierURL, httpClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers)

	errs := make(chan error, 2)
	for _, topic := range []string{"order.events", "session.events"} {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, topic, "notification-worker")
		defer func() { _ = consumer.Close() }()

		go func() {
			errs <- consumer.Consume(ctx, notificationHandler.Handle)
		}()
	}

	if err := <-errs; err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
