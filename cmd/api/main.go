package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/api/middleware"
	"github.com/feral-file/card-registry/internal/api/server"
	"github.com/feral-file/card-registry/internal/api/shared/executor"
	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/config"
	"github.com/feral-file/card-registry/internal/host"
	"github.com/feral-file/card-registry/internal/logger"
	"github.com/feral-file/card-registry/internal/messaging"
	"github.com/feral-file/card-registry/internal/providers/jetstream"
	"github.com/feral-file/card-registry/internal/store"
	"github.com/feral-file/card-registry/internal/uri"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service":  "card-registry-api",
			"contract": cfg.Contract.ID,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Card Registry API", zap.String("contract", cfg.Contract.ID))

	// Open store
	dataStore, err := store.Open(config.StoreConfig(cfg.Storage, cfg.Database))
	if err != nil {
		logger.FatalCtx(ctx, "Failed to open store", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			logger.Error(err, zap.String("message", "Failed to close store"))
		}
	}()
	logger.InfoCtx(ctx, "Opened store", zap.String("driver", cfg.Storage.Driver))

	// Initialize adapters
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	// Connect event publisher
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(cfg.NATS.Publisher(), adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, events will not be published")
		publisher = messaging.NewNoopPublisher()
	}
	defer publisher.Close()

	codec := auth.NewCodec(jsonAdapter, adapter.NewJCS())
	registryHost := host.New(host.Config{Contract: cfg.Contract.ID}, dataStore, codec, jsonAdapter, clock, publisher)

	resolver := uri.NewResolver(adapter.NewHTTPClient(cfg.URI.HTTPTimeout), &uri.Config{
		IPFSGateways:    cfg.URI.IPFSGateways,
		ArweaveGateways: cfg.URI.ArweaveGateways,
	})

	serverConfig := server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Contract:       cfg.Contract.ID,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}
	if !serverConfig.Auth.Enabled() {
		logger.WarnCtx(ctx, "No JWT public key or API keys configured, invocations endpoint is open")
	}

	srv := server.New(serverConfig, executor.NewExecutor(registryHost, resolver, jsonAdapter))

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("message", "Server forced to shutdown"))
	}

	logger.Info("API server stopped")
}
