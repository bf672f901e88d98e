package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pgt-ticketing/internal/api"
	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/observability"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
)

// retryWithBackoff retries operation with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	flags := pflag.NewFlagSet("gate-server", pflag.ContinueOnError)
	flags.String("config", "", "path to a config file (default: configs/config.yaml)")
	flags.String("addr", "", "listen address, overrides server.address")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	v := viper.New()
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("server.address", flags.Lookup("addr"))

	cfg, err := config.LoadWith(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting gate server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Tickets.Store),
	)

	obs := observability.NewWithOptions(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("dependency init failed", zap.Error(err))
	}
	defer deps.Close()

	gate, err := buildGate(cfg, deps, log, obs)
	if err != nil {
		zapLog.Fatal("access gate init failed", zap.Error(err))
	}

	issuer := buildIssuer(cfg, deps, log, obs)
	service := issuance.NewService(gate, issuer, log)
	zapLog.Info("issuance route selected", zap.String("mode", string(service.Mode())))

	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("schema compile failed", zap.Error(err))
	}

	server, err := api.NewServer(api.Options{
		Service:        service,
		Validator:      validator,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Readiness:      deps.Readiness(),
	})
	if err != nil {
		zapLog.Fatal("http server init failed", zap.Error(err))
	}

	workers := startWorkers(cfg, deps, service, validator, log, obs)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	for _, w := range workers {
		w.Stop()
	}
	cancel()

	zapLog.Info("Gate server stopped gracefully")
}
