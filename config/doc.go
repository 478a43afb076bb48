// Package config provides layered configuration loading for the query engine.
//
// Configuration comes from three sources, applied in order: built-in defaults,
// JSON file layers, and SEMFUSE_* environment variables. Later sources win, and
// file layers are deep-merged so a layer only overrides the fields it names.
//
// # Sections
//
//   - storage: document backend selection ("memory" or "kv") plus NATS
//     connection settings and rate limiting for the KV backend
//   - registry: paths to YAML entity schema files or directories
//   - cache: LRU cache sizing for metadata graph lookups
//   - metrics: Prometheus endpoint port and path
//   - logging: slog level and output format
//
// # Basic Usage
//
// Loading a single file:
//
//	loader := config.NewLoader()
//	loader.EnableValidation(true)
//	cfg, err := loader.LoadFile("configs/example.json")
//
// Loading layers (base plus deployment override):
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.json")
//	loader.AddLayer("configs/prod.json")
//	cfg, err := loader.Load()
//
// # Environment Overrides
//
// The following variables override file values when set:
//
//	SEMFUSE_STORAGE_MODE    storage.mode
//	SEMFUSE_STORAGE_BUCKET  storage.bucket
//	SEMFUSE_NATS_URLS       storage.nats.urls (comma-separated)
//	SEMFUSE_NATS_USERNAME   storage.nats.username
//	SEMFUSE_NATS_PASSWORD   storage.nats.password
//	SEMFUSE_NATS_TOKEN      storage.nats.token
//	SEMFUSE_LOG_LEVEL       logging.level
//	SEMFUSE_LOG_FORMAT      logging.format
//	SEMFUSE_METRICS_PORT    metrics.port
//
// # Thread Safety
//
// Config values are plain structs and should be treated as immutable after
// loading. SafeConfig wraps a Config with an RWMutex for components that need
// to swap configuration at runtime; Get returns a deep copy so callers can
// never mutate shared state.
//
// # File Safety
//
// Config files are read through safeReadFile, which enforces a 10MB size
// limit, rejects non-regular files and path traversal, and bounds JSON
// nesting depth before unmarshaling.
package config
