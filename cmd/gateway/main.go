// Package main is the entry point for the tripgate edge gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tripwell/tripgate/internal/config"
	"github.com/tripwell/tripgate/internal/gateway"
	"github.com/tripwell/tripgate/internal/metrics"
	"github.com/tripwell/tripgate/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("TRIPGATE_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("TRIPGATE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("TRIPGATE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("tripgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting tripgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("routes", len(cfg.Routes)),
		observability.Bool("redis", cfg.Redis.Enabled),
		observability.Bool("tracing", cfg.Tracing.Enabled),
	)

	return cfg
}

// run starts the gateway, wires the config watcher, and blocks until a
// shutdown signal arrives.
func run(cfg *config.GatewayConfig, configPath string, logger observability.Logger) {
	ctx := context.Background()

	tracer := initTracer(cfg, logger)

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithSink(metrics.NewPromSink(logger)),
	}
	if tracer != nil {
		opts = append(opts, gateway.WithTracer(tracer))
	}
	if cfg.Server.ShutdownTimeout.Duration() > 0 {
		opts = append(opts, gateway.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Duration()))
	}

	gw, err := gateway.New(ctx, cfg, opts...)
	if err != nil {
		logger.Fatal("failed to initialize gateway", observability.Error(err))
	}

	if err := gw.Start(ctx); err != nil {
		logger.Fatal("failed to start gateway", observability.Error(err))
	}

	watcher := startConfigWatcher(ctx, gw, configPath, logger)

	waitForShutdown(gw, watcher, tracer, logger)
}

// initTracer initializes the OTLP tracer when tracing is enabled.
func initTracer(cfg *config.GatewayConfig, logger observability.Logger) *observability.Tracer {
	if !cfg.Tracing.Enabled {
		return nil
	}

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      true,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// startConfigWatcher watches the config file and reloads the gateway on
// change. Watcher failures are not fatal; the gateway keeps serving with the
// last good configuration.
func startConfigWatcher(ctx context.Context, gw *gateway.Gateway, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath,
		func(cfg *config.GatewayConfig) {
			if err := gw.Reload(ctx, cfg); err != nil {
				logger.Error("configuration reload rejected", observability.Error(err))
			}
		},
		config.WithLogger(logger),
	)
	if err != nil {
		logger.Warn("config watcher unavailable, hot reload disabled",
			observability.Error(err),
		)
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start, hot reload disabled",
			observability.Error(err),
		)
		return nil
	}

	return watcher
}

// waitForShutdown blocks for SIGINT/SIGTERM and drains the gateway.
func waitForShutdown(gw *gateway.Gateway, watcher *config.Watcher, tracer *observability.Tracer, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if tracer != nil {
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer", observability.Error(err))
		}
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
