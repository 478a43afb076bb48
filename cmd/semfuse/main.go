// Package main implements the entry point for the semfuse engine.
// semfuse ingests heterogeneous source files (CSV, XML, JSON) into a single
// document store, compiles a metadata graph over the declared schemas, and
// answers single-entity and relationship-traversal queries against it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360/semfuse/config"
	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/ingest"
	"github.com/c360/semfuse/metagraph"
	"github.com/c360/semfuse/metric"
	"github.com/c360/semfuse/natsclient"
	"github.com/c360/semfuse/query"
	"github.com/c360/semfuse/schema"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semfuse"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	registry, err := schema.LoadPaths(cfg.Registry.SchemaPaths...)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration and schemas are valid",
			"config", cliCfg.ConfigPath, "entities", registry.Len())
		return nil
	}

	slog.Info("Starting semfuse",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"storage_mode", cfg.Storage.Mode,
		"entities", registry.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	metrics := metricsRegistry.CoreMetrics()

	store, cleanup, err := openStore(ctx, cfg, logger, metricsRegistry, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	graphStore, err := metagraph.NewGraphStore(store, logger)
	if err != nil {
		return fmt.Errorf("create graph store: %w", err)
	}
	guard := metagraph.NewGuard()

	loader, err := ingest.NewLoader(ingest.Dependencies{
		Registry: registry,
		Store:    store,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}

	if err := loader.Provision(ctx); err != nil {
		return fmt.Errorf("provision collections: %w", err)
	}

	if cliCfg.DataDir != "" {
		if _, err := loader.LoadDir(ctx, cliCfg.DataDir); err != nil {
			return fmt.Errorf("ingest data directory: %w", err)
		}
	}

	if cliCfg.Rebuild {
		compiler, err := metagraph.NewCompiler(metagraph.Dependencies{
			Registry: registry,
			Store:    graphStore,
			Guard:    guard,
			Logger:   logger,
			Metrics:  metrics,
		})
		if err != nil {
			return fmt.Errorf("create compiler: %w", err)
		}
		result, err := compiler.Build(ctx)
		if err != nil {
			return fmt.Errorf("rebuild metadata graph: %w", err)
		}
		slog.Info("Metadata graph rebuilt",
			"entity_nodes", result.EntityNodes,
			"field_nodes", result.FieldNodes,
			"reference_edges", result.ReferenceEdges,
			"skipped_references", result.SkippedReferences,
			"generation", result.Generation)
	}

	if cliCfg.QueryPath != "" {
		if err := executeQueryFile(ctx, cliCfg.QueryPath, cfg, graphStore, store, guard, logger, metrics); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		return serveMetrics(ctx, cfg, metricsRegistry)
	}
	return nil
}

// loadConfiguration loads the config file, applies CLI overrides, and
// validates the result.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.AddLayer(cliCfg.ConfigPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.SchemaPaths != "" {
		cfg.Registry.SchemaPaths = strings.Split(cliCfg.SchemaPaths, ",")
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	if cliCfg.MetricsPort != 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Registry.SchemaPaths) == 0 {
		return nil, fmt.Errorf("no schema paths configured (set registry.schema_paths or -schemas)")
	}
	return cfg, nil
}

// openStore builds the configured document backend. The returned cleanup
// closes whatever the backend holds open.
func openStore(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	metrics *metric.Metrics,
) (docstore.Store, func(), error) {
	deps := docstore.Dependencies{Logger: logger, Metrics: metrics}

	switch cfg.Storage.Mode {
	case config.StorageModeMemory:
		return docstore.NewMemory(deps), func() {}, nil

	case config.StorageModeKV:
		opts := []natsclient.ClientOption{
			natsclient.WithMaxReconnects(cfg.Storage.NATS.MaxReconnects),
			natsclient.WithReconnectWait(cfg.Storage.NATS.ReconnectWait),
			natsclient.WithName(appName),
			natsclient.WithMetrics(registry),
		}
		if cfg.Storage.NATS.Username != "" {
			opts = append(opts, natsclient.WithCredentials(
				cfg.Storage.NATS.Username, cfg.Storage.NATS.Password))
		}
		if cfg.Storage.NATS.Token != "" {
			opts = append(opts, natsclient.WithToken(cfg.Storage.NATS.Token))
		}
		if cfg.Storage.NATS.TLS.Enabled {
			opts = append(opts, natsclient.WithTLS(
				cfg.Storage.NATS.TLS.CertFile,
				cfg.Storage.NATS.TLS.KeyFile,
				cfg.Storage.NATS.TLS.CAFile))
		}

		client, err := natsclient.NewClient(cfg.Storage.NATS.URLs[0], opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create nats client: %w", err)
		}

		slog.Info("Connecting to NATS", "url", cfg.Storage.NATS.URLs[0])
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.WaitForConnection(connCtx); err != nil {
			_ = client.Close(ctx)
			return nil, nil, fmt.Errorf("NATS connection timeout: %w", err)
		}

		store, err := docstore.NewKV(ctx, client, docstore.KVConfig{
			Bucket:    cfg.Storage.Bucket,
			RateLimit: cfg.Storage.RateLimit,
			RateBurst: cfg.Storage.RateBurst,
		}, deps)
		if err != nil {
			_ = client.Close(ctx)
			return nil, nil, fmt.Errorf("open kv store: %w", err)
		}

		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				slog.Warn("NATS close failed", "error", err)
			}
		}
		return store, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage mode %q", cfg.Storage.Mode)
	}
}

// executeQueryFile decodes one JSON query envelope and prints the result
// records to stdout as indented JSON.
func executeQueryFile(
	ctx context.Context,
	path string,
	cfg *config.Config,
	graphStore *metagraph.GraphStore,
	store docstore.Store,
	guard *metagraph.Guard,
	logger *slog.Logger,
	metrics *metric.Metrics,
) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}

	q, err := query.Decode(data)
	if err != nil {
		return fmt.Errorf("decode query: %w", err)
	}

	executor, err := query.NewExecutor(query.Dependencies{
		Graph:   graphStore,
		Store:   store,
		Guard:   guard,
		Cache:   cfg.Cache,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	defer func() { _ = executor.Close() }()

	records, err := executor.Execute(ctx, q)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	slog.Info("Query executed", "action", q.Action(), "records", len(records))
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// serveMetrics runs the Prometheus endpoint until the context is cancelled
// by SIGINT or SIGTERM.
func serveMetrics(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry) error {
	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	slog.Info("Metrics server listening", "address", server.Address(), "path", cfg.Metrics.Path)

	<-ctx.Done()
	slog.Info("Shutdown signal received")
	if err := server.Stop(); err != nil {
		return fmt.Errorf("stop metrics server: %w", err)
	}
	return nil
}
