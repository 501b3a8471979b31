package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/config"
	"github.com/Wuchinator/landing-analytics/internal/event"
	"github.com/Wuchinator/landing-analytics/internal/geocode"
	"github.com/Wuchinator/landing-analytics/internal/httpapi"
	"github.com/Wuchinator/landing-analytics/internal/metrics"
	"github.com/Wuchinator/landing-analytics/internal/query"
	"github.com/Wuchinator/landing-analytics/internal/session"
	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/pkg/database"
	"github.com/Wuchinator/landing-analytics/pkg/kafka"
	"github.com/Wuchinator/landing-analytics/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "tracker-service"

type publisher interface {
	Publish(ctx context.Context, kind, sessionID string, data any) error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Service:     serviceName,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync(log)

	log.Info("Starting Tracker Service",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCHealthPort),
		zap.String("store", cfg.Store.Driver),
	)

	if cfg.Store.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			log.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN(),
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(migrateCtx, db, log)
	cancelMigrate()
	if err != nil {
		log.Fatal("Failed to prepare schema", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB.DB, cfg.Store.Driver),
	)
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	var resolver geocode.Resolver = geocode.Noop{}
	if cfg.Geocoder.Enabled {
		resolver = geocode.NewClient(geocode.Config{
			URL:       cfg.Geocoder.URL,
			UserAgent: cfg.Geocoder.UserAgent,
			Timeout:   cfg.Geocoder.Timeout,
		}, m, log)
	}

	var events publisher = kafka.Discard{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			Retries:          cfg.Kafka.ProducerRetries,
			Timeout:          cfg.Kafka.ProducerTimeout,
			PublishTimeout:   cfg.Kafka.PublishTimeout,
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Compression:      cfg.Kafka.CompressionType,
			IdempotentWrites: cfg.Kafka.IdempotentWrites,
			MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		events = producer
	}
	defer events.Close()

	sessionService := session.NewService(
		session.NewRepository(db, log),
		resolver,
		events,
		m,
		session.Config{GeocodeTimeout: cfg.Geocoder.Timeout},
		log,
	)
	eventService := event.NewService(event.NewRepository(db, log), events, m, log)
	queryService := query.NewService(query.NewRepository(db, log), m, log)

	router := httpapi.NewRouter(httpapi.Options{
		Logger:         log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TrackRateLimit: cfg.HTTP.TrackRateLimit,
		Health:         db,
		Gatherer:       registry,
	},
		[]httpapi.Registrar{
			session.NewHandler(sessionService, log),
			event.NewHandler(eventService, log),
		},
		[]httpapi.Registrar{
			query.NewHandler(queryService, query.Limits{
				Default: cfg.Query.DefaultLimit,
				Max:     cfg.Query.MaxLimit,
			}, log),
		},
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(log),
			recoveryInterceptor(log),
		),
	)

	// Probe target for orchestrators and grpc_health_probe.
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		log.Fatal("Failed to create listener", zap.Error(err))
	}

	go func() {
		log.Info("gRPC health server starting", zap.String("port", cfg.GRPCHealthPort))
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown timed out", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("gRPC server stopped")
	case <-ctx.Done():
		log.Warn("Shutdown timeout, forcing stop")
		grpcServer.Stop()
	}

	log.Info("Tracker Service stopped")
}
