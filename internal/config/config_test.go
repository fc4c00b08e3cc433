package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load(v)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Log, cfg.Log)
	assert.Equal(t, d.Trace, cfg.Trace)
	assert.Equal(t, "group-meeting", cfg.Search.Method)
	assert.Equal(t, "deterministic", cfg.Search.Mode)
	assert.Equal(t, 60*time.Second, cfg.Ranker.Timeout)
	assert.Equal(t, 0.6, cfg.Ranker.CircuitBreaker.FailureRatio)
	assert.Equal(t, int64(4), cfg.Resources.Workers)
}

func TestReadMissingNamedFile(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, Read(v))
}

func TestYAMLRoundTrip(t *testing.T) {
	d := Default()
	d.Search.Method = "global"
	d.Storage.Driver = "memory"
	d.Ranker.Timeout = 5 * time.Second

	data, err := d.YAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	v := New(path)
	require.NoError(t, Read(v))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "global", cfg.Search.Method)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Ranker.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Ranker.CircuitBreaker.Timeout)
	assert.EqualValues(t, 16, cfg.Search.Params["num_particles"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REWARDSEARCH_SEARCH_MODE", "probabilistic")
	t.Setenv("REWARDSEARCH_LOG_LEVEL", "debug")
	t.Setenv("MINIO_ACCESS_KEY", "minio")

	cfg, err := Load(New(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)

	assert.Equal(t, "probabilistic", cfg.Search.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "minio", cfg.Storage.MinIO.AccessKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"LogFormat", func(c *Config) { c.Log.Format = "xml" }},
		{"Driver", func(c *Config) { c.Storage.Driver = "ftp" }},
		{"S3Bucket", func(c *Config) { c.Storage.Driver = "s3" }},
		{"MinIO", func(c *Config) { c.Storage.Driver = "minio" }},
		{"LedgerTable", func(c *Config) { c.Ledger.Enabled = true; c.Ledger.Table = "" }},
	}

	d := Default()
	require.NoError(t, d.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(&c)
			assert.Error(t, c.Validate())
		})
	}
}
