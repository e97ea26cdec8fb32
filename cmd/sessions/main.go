// Package main runs the subscription session service.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/mfreiras/menuflow/internal/blob"
	"github.com/mfreiras/menuflow/internal/config"
	"github.com/mfreiras/menuflow/internal/messaging"
	"github.com/mfreiras/menuflow/internal/payment"
	"github.com/mfreiras/menuflow/internal/sessions"
	"github.com/mfreiras/menuflow/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load[config.Sessions]()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec("SET search_path TO sessions"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	proofs, err := blob.NewDiskStore(cfg.BlobDir)
	if err != nil {
		logger.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	var gateway sessions.PaymentGateway
	if cfg.PaymentGatewayURL != "" {
		gateway = payment.NewClient(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, &http.Client{
			Timeout: 15 * time.Second,
		})
	}

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, "session.events")
		defer func() { _ = producer.Close() }()
	}

	metricsHandler, shutdownMetrics, err := telemetry.InitMeterProvider("sessions", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	store := sessions.NewPostgresStore(db)
	handler := sessions.NewHandler(store, proofs, gateway, publisherOrNil(producer), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", handler.HandleList)
	mux.HandleFunc("POST /sessions", handler.HandleCreate)
	mux.HandleFunc("GET /sessions/{id}", handler.HandleGet)
	mux.HandleFunc("POST /sessions/{id}/payment-proof", handler.HandlePaymentProof)
	mux.HandleFunc("POST /sessions/{id}/confirm-payment", handler.HandleConfirmPayment)
	mux.HandleFunc("POST /sessions/{id}/renew", handler.HandleRenew)
	mux.HandleFunc("PATCH /sessions/{id}/status", handler.HandleUpdateStatus)
	mux.HandleFunc("POST /sessions/{id}/terminate", handler.HandleTerminate)
	mux.HandleFunc("POST /sessions/{id}/checkout", handler.HandleCheckout)
	mux.HandleFunc("GET /sessions/{id}/renewals", handler.HandleListRenewals)
	mux.HandleFunc("PATCH /renewals/{id}/status", handler.HandleRenewalStatus)
	mux.HandleFunc("DELETE /renewals/{id}", handler.HandleDeleteRenewal)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting sessions service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func publisherOrNil(p *messaging.Producer) sessions.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
