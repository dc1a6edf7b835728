package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/catalog"
	"github.com/bookstore/services/library/internal/config"
	"github.com/bookstore/services/library/internal/events"
	grpcserver "github.com/bookstore/services/library/internal/grpc"
	"github.com/bookstore/services/library/internal/httpapi"
	"github.com/bookstore/services/library/internal/ledger"
	"github.com/bookstore/services/library/internal/lending"
	"github.com/bookstore/services/library/internal/metrics"
	"github.com/bookstore/services/library/internal/repo"
	"github.com/bookstore/services/library/pkg/logger"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "REST API port")
	flags.StringVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "gRPC health port")
	flags.StringVar(&cfg.RabbitMQURL, "rabbitmq-url", cfg.RabbitMQURL, "RabbitMQ URL, empty disables events")
	flags.IntVar(&cfg.MaxLoanDays, "max-loan-days", cfg.MaxLoanDays, "longest accepted loan in days")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Library service starting")

	database, err := openDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return err
	}
	defer database.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store := repo.NewRepository(database, log)
	registry.MustRegister(metrics.NewStatsCollector(store))
	inventory := ledger.NewLedger(database, store, log, m)

	var (
		publisher  *events.RabbitPublisher
		dispatcher *events.Dispatcher
		broker     interface{ IsHealthy() bool }
	)
	if cfg.RabbitMQURL != "" {
		log.Info("Connecting to RabbitMQ")
		publisher, err = events.NewRabbitPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
		} else {
			dispatcher = events.NewDispatcher(publisher, log, m)
			broker = publisher
		}
	}

	engine := lending.NewEngine(database, store, inventory, log,
		lending.WithMaxLoanDays(cfg.MaxLoanDays),
		lending.WithMetrics(m),
		lending.WithEvents(dispatcher),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Repo:           store,
		Ledger:         inventory,
		Engine:         engine,
		Catalog:        catalog.New(store),
		Events:         dispatcher,
		Metrics:        m,
		Gatherer:       registry,
		DB:             database,
		Broker:         broker,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	})

	grpcServer := grpcserver.NewServer(grpcserver.NewHealthServer(database, broker, log), log)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Error("Failed to listen on gRPC port", zap.Error(err))
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case serveErr = <-errCh:
		log.Error("Server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("Pending events dropped at shutdown", zap.Error(err))
	}
	if publisher != nil {
		publisher.Close()
	}

	log.Info("Server stopped")
	return serveErr
}
