package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	SchemaPaths string
	DataDir     string
	Rebuild     bool
	QueryPath   string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SEMFUSE_CONFIG", "configs/example.json"),
		"Path to configuration file (env: SEMFUSE_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SEMFUSE_CONFIG", "configs/example.json"),
		"Path to configuration file (env: SEMFUSE_CONFIG)")

	flag.StringVar(&cfg.SchemaPaths, "schemas",
		getEnv("SEMFUSE_SCHEMAS", ""),
		"Comma-separated schema files or directories, overrides config (env: SEMFUSE_SCHEMAS)")

	flag.StringVar(&cfg.DataDir, "data",
		getEnv("SEMFUSE_DATA", ""),
		"Data directory to ingest, empty to skip (env: SEMFUSE_DATA)")

	flag.BoolVar(&cfg.Rebuild, "rebuild",
		getEnvBool("SEMFUSE_REBUILD", false),
		"Rebuild the metadata graph from the schema registry (env: SEMFUSE_REBUILD)")

	flag.StringVar(&cfg.QueryPath, "query",
		getEnv("SEMFUSE_QUERY", ""),
		"Path to a JSON query file to execute, empty to skip (env: SEMFUSE_QUERY)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SEMFUSE_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error; overrides config (env: SEMFUSE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SEMFUSE_LOG_FORMAT", ""),
		"Log format: json, text; overrides config (env: SEMFUSE_LOG_FORMAT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("SEMFUSE_METRICS_PORT", 0),
		"Metrics server port, overrides config; 0 keeps the config value (env: SEMFUSE_METRICS_PORT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and schemas, then exit")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.DataDir != "" {
		info, err := os.Stat(cfg.DataDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("data directory not found: %s", cfg.DataDir)
		}
	}

	if cfg.QueryPath != "" {
		if _, err := os.Stat(cfg.QueryPath); err != nil {
			return fmt.Errorf("query file not found: %s", cfg.QueryPath)
		}
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Metadata-Graph Query Engine

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Ingest a data directory and rebuild the metadata graph
  %s --config=configs/example.json --data=./data --rebuild

  # Execute a query file against an existing store
  %s --query=queries/students_courses.json

  # Run with environment variables
  export SEMFUSE_CONFIG=/etc/semfuse/config.json
  export SEMFUSE_LOG_LEVEL=debug
  %s --rebuild

  # Validate configuration and schemas only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
