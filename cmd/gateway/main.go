// Package main runs the public API gateway.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mfreiras/menuflow/internal/config"
	"github.com/mfreiras/menuflow/internal/gateway"
	"github.com/mfreiras/menuflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load[config.Gateway]()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	ordersProxy := gateway.NewServiceProxy(cfg.OrdersServiceURL, httpClient)
	sessionsProxy := gateway.NewServiceProxy(cfg.SessionsServiceURL, httpClient)
	handler := gateway.NewHandler(ordersProxy, sessionsProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders/{id}/confirm", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /orders/{id}/invoice", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /sessions", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("GET /sessions/{id}", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions/{id}/payment-proof", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions/{id}/confirm-payment", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions/{id}/renew", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("PATCH /sessions/{id}/status", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions/{id}/terminate", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("POST /sessions/{id}/checkout", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("GET /sessions/{id}/renewals", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("PATCH /renewals/{id}/status", telemetry.WithHTTPRoute(handler.HandleSessions))
	mux.HandleFunc("DELETE /renewals/{id}", telemetry.WithHTTPRoute(handler.HandleSessions))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
