// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	meshconfig "github.com/querymesh/loomquery/pkg/config"
	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/executor"
	"github.com/querymesh/loomquery/pkg/intent"
	"github.com/querymesh/loomquery/pkg/llm"
	"github.com/querymesh/loomquery/pkg/llm/factory"
	"github.com/querymesh/loomquery/pkg/llmgateway"
	"github.com/querymesh/loomquery/pkg/metadata"
	"github.com/querymesh/loomquery/pkg/observability"
	"github.com/querymesh/loomquery/pkg/orchestration"
	"github.com/querymesh/loomquery/pkg/prompts"
	"github.com/querymesh/loomquery/pkg/registry"
	"github.com/querymesh/loomquery/pkg/resultcache"
	"github.com/querymesh/loomquery/pkg/schemacache"
	"github.com/querymesh/loomquery/pkg/server"
	"github.com/querymesh/loomquery/pkg/sqlbackend"
	pgstorage "github.com/querymesh/loomquery/pkg/storage/postgres"
	sqlitestorage "github.com/querymesh/loomquery/pkg/storage/sqlite"
	"github.com/querymesh/loomquery/pkg/synth"
	"github.com/querymesh/loomquery/pkg/types"
	"github.com/querymesh/loomquery/pkg/visualization"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query pipeline HTTP server",
	Long: `Start the query pipeline server.

The server will:
- Connect to every configured database backend
- Construct the LLM Gateway from the configured providers
- Wire the Orchestrator's PARSE/SCHEMA/SYNTHESIZE/GATE/EXECUTE/VISUALIZE stages
- Serve REST + SSE on the configured address

Press Ctrl+C to gracefully shutdown.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		log.Fatalf("configuration validation failed: %v", err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting loomquery", zap.String("version", rootCmd.Version))
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("config file loaded", zap.String("path", used))
	} else {
		logger.Info("no config file found, using defaults + environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsRegistry := prometheus.NewRegistry()
	tracer := observability.NewPrometheusTracer(observability.NewZapTracer(logger), metricsRegistry)

	reg, err := registry.New(ctx, config.Backends, logger, tracer)
	if err != nil {
		logger.Fatal("failed to build database registry", zap.Error(err))
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("error closing registry", zap.Error(err))
		}
	}()

	if err := server.ValidateBackends(ctx, reg); err != nil {
		logger.Warn("backend preflight check reported failures", zap.Error(err))
	}

	primary, fallback := buildProviders(config, logger, tracer)
	var gateway *llmgateway.Gateway
	if primary != nil {
		probes := []types.LLMProvider{primary}
		if fallback != nil {
			probes = append(probes, fallback)
		}
		if err := server.ValidateProviders(ctx, probes...); err != nil {
			logger.Warn("LLM provider preflight check reported failures", zap.Error(err))
		}
		gateway = llmgateway.New(primary, fallback, tracer, logger)
	} else {
		logger.Warn("no LLM provider credentials configured; intent classification and SQL synthesis fall back to deterministic paths")
	}

	fileRegistry := prompts.NewFileRegistry("prompts")
	if err := fileRegistry.Reload(ctx); err != nil {
		logger.Warn("failed to load prompt templates, synthesis will use built-in fallbacks", zap.Error(err))
	}
	promptRegistry := prompts.NewCachedRegistry(fileRegistry, config.Cache.PromptTTL)

	schemaCache := schemacache.New(schemacache.RegistrySource{Registry: reg}, logger)
	resultCache := resultcache.New(config.Cache.ResultTTL)

	extractor := intent.New(gateway, logger)
	synthesizer := synth.New(gateway, promptRegistry, logger)
	exec := executor.New(reg, resultCache, logger)
	selector := visualization.NewSelector()

	monitor := orchestration.NewMonitor()

	orch := orchestration.New(orchestration.Config{
		Registry:         reg,
		SchemaCache:      schemaCache,
		Synth:            synthesizer,
		Intent:           extractor,
		Executor:         exec,
		Viz:              selector,
		Tracer:           tracer,
		Logger:           logger,
		ProgressCallback: monitor.Callback(),
	})

	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 1m", func() {
		if removed := resultCache.Sweep(); removed > 0 {
			logger.Debug("result cache swept", zap.Int("removed", removed))
		}
	})
	if err != nil {
		logger.Warn("failed to schedule result cache sweep", zap.Error(err))
	}
	_, err = sweeper.AddFunc("@every "+config.Cache.SchemaSweepInterval.String(), func() {
		for _, id := range reg.IDs() {
			schemaCache.Invalidate(id)
		}
	})
	if err != nil {
		logger.Warn("failed to schedule schema cache sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	consolidator := metadata.New(domain.Dialect(config.MetadataDialect))

	if mb, err := reg.Backend(domain.DefaultBackendID); err == nil {
		if err := migrateMetadataTables(ctx, mb, tracer, logger); err != nil {
			logger.Warn("metadata migrations failed; extract-all-schemas will create tables on demand", zap.Error(err))
		}
	}

	httpSrv := server.New(server.Config{
		Orchestrator: orch,
		Monitor:      monitor,
		Registry:     reg,
		SchemaCache:  schemaCache,
		Consolidator: consolidator,
		Metrics:      metricsRegistry,
		Addr:         config.Server.Addr,
		CORS: server.CORSConfig{
			Enabled:        true,
			AllowedOrigins: config.Server.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Content-Length", "Content-Type"},
			MaxAge:         86400,
		},
		Logger: logger,
		Auth: server.UserIDConfig{
			RequireUserID: config.Server.RequireUserID,
			DefaultUserID: config.Server.DefaultUserID,
			Logger:        logger,
		},
	})

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", config.Server.Addr))

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	logger.Info("shutting down gracefully... (press Ctrl+C again to force)")

	go func() {
		<-sigch
		logger.Warn("force shutdown requested")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", zap.Error(err))
	} else {
		logger.Info("http server stopped")
	}
}

func newLogger() *zap.Logger {
	level := viper.GetString("log_level")
	zapConfig := zap.NewProductionConfig()
	logLevel := zap.InfoLevel
	if level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", level, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)
	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	return logger
}

// migrateMetadataTables applies the consolidated-metadata migrations on the
// default backend at startup, so POST /databases/extract-all-schemas writes
// into versioned tables. SQLite databases are backed up online before any
// pending migration is applied. Dialects without an embedded migration set
// fall back to the consolidator's own CREATE IF NOT EXISTS path at request
// time.
func migrateMetadataTables(ctx context.Context, b *sqlbackend.Backend, tracer observability.Tracer, logger *zap.Logger) error {
	switch b.Config().Dialect {
	case domain.DialectSQLite:
		m, err := sqlitestorage.NewMigrator(b.DB(), tracer)
		if err != nil {
			return err
		}
		pending, err := m.PendingMigrations(ctx)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			if path := sqliteFilePath(b.Config().ConnectionDescriptor); path != "" {
				backupPath, err := sqlitestorage.Backup(path)
				if err != nil {
					return fmt.Errorf("pre-migration backup: %w", err)
				}
				logger.Info("metadata database backed up before migration", zap.String("path", backupPath))
			}
		}
		return m.MigrateUp(ctx)
	case domain.DialectPostgres:
		m, err := pgstorage.NewMigrator(b.DB(), tracer)
		if err != nil {
			return err
		}
		return m.MigrateUp(ctx)
	default:
		return nil
	}
}

// sqliteFilePath strips DSN query parameters from a SQLite connection
// descriptor, returning "" for in-memory or not-yet-created databases that
// have nothing on disk to back up.
func sqliteFilePath(dsn string) string {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// buildProviders constructs the primary and fallback LLM providers from
// configuration. Fallback is nil when only one provider has credentials;
// the Gateway treats a nil fallback as "no fallback available" rather than
// an error.
func buildProviders(cfg *meshconfig.Config, logger *zap.Logger, tracer observability.Tracer) (types.LLMProvider, types.LLMProvider) {
	f := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider:        cfg.LLM.DefaultProvider,
		DefaultModel:           cfg.LLM.DefaultModel,
		AnthropicAPIKey:        cfg.LLM.AnthropicAPIKey,
		AnthropicModel:         cfg.LLM.AnthropicModel,
		BedrockRegion:          cfg.LLM.BedrockRegion,
		BedrockAccessKeyID:     cfg.LLM.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
		BedrockSessionToken:    cfg.LLM.BedrockSessionToken,
		BedrockProfile:         cfg.LLM.BedrockProfile,
		BedrockModelID:         cfg.LLM.BedrockModelID,
		OpenAIAPIKey:           cfg.LLM.OpenAIAPIKey,
		OpenAIModel:            cfg.LLM.OpenAIModel,
		MaxTokens:              cfg.LLM.MaxTokens,
		Temperature:            cfg.LLM.Temperature,
		Timeout:                cfg.LLM.TimeoutSecs,
	})

	var providers []types.LLMProvider
	for _, name := range cfg.ConfiguredProviders() {
		p, err := f.CreateProvider(name, "")
		if err != nil {
			logger.Warn("failed to construct LLM provider", zap.String("provider", name), zap.Error(err))
			continue
		}
		provider, ok := p.(types.LLMProvider)
		if !ok {
			logger.Warn("LLM provider did not satisfy types.LLMProvider", zap.String("provider", name))
			continue
		}
		providers = append(providers, llm.NewInstrumentedProvider(provider, tracer))
	}

	var primary, fallback types.LLMProvider
	if len(providers) > 0 {
		primary = providers[0]
	}
	if len(providers) > 1 {
		fallback = providers[1]
	}
	return primary, fallback
}
