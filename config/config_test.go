package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, StorageModeMemory, cfg.Storage.Mode)
	assert.Equal(t, "semfuse_docs", cfg.Storage.Bucket)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.Storage.NATS.URLs)
	assert.Equal(t, 2*time.Second, cfg.Storage.NATS.ReconnectWait)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.json", `{
		"storage": {
			"mode": "kv",
			"bucket": "docs",
			"nats": {
				"urls": ["nats://nats-1:4222"],
				"reconnect_wait": "5s"
			}
		},
		"logging": {"level": "debug"}
	}`)

	// Loader resolves paths relative to the working directory
	t.Chdir(dir)

	loader := NewLoader()
	cfg, err := loader.LoadFile(filepath.Base(path))
	require.NoError(t, err)

	assert.Equal(t, StorageModeKV, cfg.Storage.Mode)
	assert.Equal(t, "docs", cfg.Storage.Bucket)
	assert.Equal(t, []string{"nats://nats-1:4222"}, cfg.Storage.NATS.URLs)
	assert.Equal(t, 5*time.Second, cfg.Storage.NATS.ReconnectWait)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Sections absent from the file keep their defaults
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoader_Layers(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.json", `{
		"storage": {"mode": "kv", "bucket": "base-bucket"},
		"metrics": {"enabled": true, "port": 9100}
	}`)
	writeConfigFile(t, dir, "override.json", `{
		"storage": {"bucket": "override-bucket"}
	}`)

	t.Chdir(dir)

	loader := NewLoader()
	loader.AddLayer("base.json")
	loader.AddLayer("override.json")

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Override layer wins on the bucket, base layer survives elsewhere
	assert.Equal(t, "override-bucket", cfg.Storage.Bucket)
	assert.Equal(t, StorageModeKV, cfg.Storage.Mode)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("SEMFUSE_STORAGE_MODE", "kv")
	t.Setenv("SEMFUSE_STORAGE_BUCKET", "env-bucket")
	t.Setenv("SEMFUSE_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("SEMFUSE_LOG_LEVEL", "warn")
	t.Setenv("SEMFUSE_METRICS_PORT", "9999")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, StorageModeKV, cfg.Storage.Mode)
	assert.Equal(t, "env-bucket", cfg.Storage.Bucket)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Storage.NATS.URLs)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 9999, cfg.Metrics.Port)
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFile("does-not-exist.json")
	assert.Error(t, err)
}

func TestLoader_RejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", "storage: {}")
	t.Chdir(dir)

	loader := NewLoader()
	_, err := loader.LoadFile("config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only JSON config files allowed")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid memory mode",
			mutate: func(_ *Config) {},
		},
		{
			name: "valid kv mode",
			mutate: func(c *Config) {
				c.Storage.Mode = StorageModeKV
			},
		},
		{
			name: "missing mode",
			mutate: func(c *Config) {
				c.Storage.Mode = ""
			},
			wantErr: "storage.mode is required",
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.Storage.Mode = "hybrid"
			},
			wantErr: "not valid",
		},
		{
			name: "kv mode without urls",
			mutate: func(c *Config) {
				c.Storage.Mode = StorageModeKV
				c.Storage.NATS.URLs = nil
			},
			wantErr: "storage.nats.urls is required",
		},
		{
			name: "kv mode without bucket",
			mutate: func(c *Config) {
				c.Storage.Mode = StorageModeKV
				c.Storage.Bucket = ""
			},
			wantErr: "storage.bucket is required",
		},
		{
			name: "negative rate limit",
			mutate: func(c *Config) {
				c.Storage.RateLimit = -1
			},
			wantErr: "rate_limit cannot be negative",
		},
		{
			name: "invalid metrics port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 99999
			},
			wantErr: "out of range",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: "logging.level",
		},
		{
			name: "invalid log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: "logging.format",
		},
		{
			name: "invalid cache size",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.MaxSize = 0
			},
			wantErr: "cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewLoader().getDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	original := NewLoader().getDefaults()
	original.Registry.SchemaPaths = []string{"schemas/university.yaml"}

	clone := original.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, original.Storage, clone.Storage)
	assert.Equal(t, original.Registry.SchemaPaths, clone.Registry.SchemaPaths)

	// Mutating the clone must not affect the original
	clone.Storage.Bucket = "changed"
	clone.Registry.SchemaPaths[0] = "changed.yaml"
	assert.Equal(t, "semfuse_docs", original.Storage.Bucket)
	assert.Equal(t, "schemas/university.yaml", original.Registry.SchemaPaths[0])
}

func TestSafeConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		sc := NewSafeConfig(nil)
		require.NotNil(t, sc.Get())
	})

	t.Run("update validates", func(t *testing.T) {
		sc := NewSafeConfig(NewLoader().getDefaults())

		bad := NewLoader().getDefaults()
		bad.Storage.Mode = "bogus"
		assert.Error(t, sc.Update(bad))
		assert.Error(t, sc.Update(nil))

		// Original config survives a failed update
		assert.Equal(t, StorageModeMemory, sc.Get().Storage.Mode)

		good := NewLoader().getDefaults()
		good.Storage.Mode = StorageModeKV
		require.NoError(t, sc.Update(good))
		assert.Equal(t, StorageModeKV, sc.Get().Storage.Mode)
	})

	t.Run("concurrent access", func(t *testing.T) {
		sc := NewSafeConfig(NewLoader().getDefaults())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					cfg := sc.Get()
					cfg.Storage.Bucket = "local-mutation"
					_ = sc.Update(NewLoader().getDefaults())
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, "semfuse_docs", sc.Get().Storage.Bucket)
	})
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := NewLoader().getDefaults()
	cfg.Storage.Mode = StorageModeKV
	cfg.Registry.SchemaPaths = []string{"schemas"}

	require.NoError(t, cfg.SaveToFile("saved.json"))

	loaded, err := NewLoader().LoadFile("saved.json")
	require.NoError(t, err)
	assert.Equal(t, StorageModeKV, loaded.Storage.Mode)
	assert.Equal(t, []string{"schemas"}, loaded.Registry.SchemaPaths)
}
