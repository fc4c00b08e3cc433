// Package config loads the rewardsearch CLI configuration from YAML files,
// environment variables and flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. REWARDSEARCH_SEARCH_MODE.
const EnvPrefix = "REWARDSEARCH"

// Config holds all configuration for the CLI.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Search configuration
	Search SearchConfig `mapstructure:"search" yaml:"search"`

	// Trace configuration
	Trace TraceConfig `mapstructure:"trace" yaml:"trace"`

	// Storage configuration for traces and reference catalogs
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Ledger configuration
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`

	// Ranker configuration for the remote text alignment scorer
	Ranker RankerConfig `mapstructure:"ranker" yaml:"ranker"`

	// Resources bounds concurrency, memory and request rate
	Resources ResourceConfig `mapstructure:"resources" yaml:"resources"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// SearchConfig selects the search method and its parameters
type SearchConfig struct {
	Method string         `mapstructure:"method" yaml:"method"`
	Mode   string         `mapstructure:"mode" yaml:"mode"` // deterministic, probabilistic
	Seed   uint64         `mapstructure:"seed" yaml:"seed"`
	Params map[string]any `mapstructure:"params" yaml:"params"`
}

// TraceConfig holds trace writer configuration
type TraceConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Compression    string `mapstructure:"compression" yaml:"compression"` // none, lz4, zstd
	Codec          string `mapstructure:"codec" yaml:"codec"`
	SegmentRecords int    `mapstructure:"segment_records" yaml:"segment_records"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix"`
}

// StorageConfig selects the blob store
type StorageConfig struct {
	Driver string      `mapstructure:"driver" yaml:"driver"` // memory, local, s3, minio
	Path   string      `mapstructure:"path" yaml:"path"`
	S3     S3Config    `mapstructure:"s3" yaml:"s3"`
	MinIO  MinIOConfig `mapstructure:"minio" yaml:"minio"`
}

// S3Config holds AWS S3 settings. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Region       string `mapstructure:"region" yaml:"region"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// MinIOConfig holds MinIO settings
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// LedgerConfig holds the DynamoDB run ledger settings
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Table   string `mapstructure:"table" yaml:"table"`
	Region  string `mapstructure:"region" yaml:"region"`
}

// RankerConfig holds the remote ranker settings
type RankerConfig struct {
	Endpoint       string               `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey         string               `mapstructure:"api_key" yaml:"api_key"`
	Timeout        time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests" yaml:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" yaml:"failure_ratio"`
}

// ResourceConfig holds resource limits
type ResourceConfig struct {
	Workers        int64   `mapstructure:"workers" yaml:"workers"`
	MemoryBytes    int64   `mapstructure:"memory_bytes" yaml:"memory_bytes"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
	CacheBytes     int64   `mapstructure:"cache_bytes" yaml:"cache_bytes"`
}

// New returns a viper instance with defaults and environment overrides
// configured. If file is empty, ".rewardsearch.yaml" is searched in the
// working directory and the home directory.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".rewardsearch")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Read reads the config file, if any. A missing file is not an error unless
// one was named explicitly.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	d := Default()

	// Log defaults
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Search defaults
	v.SetDefault("search.method", d.Search.Method)
	v.SetDefault("search.mode", d.Search.Mode)
	v.SetDefault("search.seed", d.Search.Seed)
	v.SetDefault("search.params", d.Search.Params)

	// Trace defaults
	v.SetDefault("trace.enabled", d.Trace.Enabled)
	v.SetDefault("trace.compression", d.Trace.Compression)
	v.SetDefault("trace.codec", d.Trace.Codec)
	v.SetDefault("trace.segment_records", d.Trace.SegmentRecords)
	v.SetDefault("trace.prefix", d.Trace.Prefix)

	// Storage defaults
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.bucket", "")
	v.SetDefault("storage.minio.prefix", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", d.Storage.MinIO.UseSSL)

	// Ledger defaults
	v.SetDefault("ledger.enabled", d.Ledger.Enabled)
	v.SetDefault("ledger.table", d.Ledger.Table)
	v.SetDefault("ledger.region", "")

	// Ranker defaults
	v.SetDefault("ranker.endpoint", "")
	v.SetDefault("ranker.api_key", "")
	v.SetDefault("ranker.timeout", d.Ranker.Timeout)
	v.SetDefault("ranker.circuit_breaker.max_requests", d.Ranker.CircuitBreaker.MaxRequests)
	v.SetDefault("ranker.circuit_breaker.interval", d.Ranker.CircuitBreaker.Interval)
	v.SetDefault("ranker.circuit_breaker.timeout", d.Ranker.CircuitBreaker.Timeout)
	v.SetDefault("ranker.circuit_breaker.min_requests", d.Ranker.CircuitBreaker.MinRequests)
	v.SetDefault("ranker.circuit_breaker.failure_ratio", d.Ranker.CircuitBreaker.FailureRatio)

	// Resource defaults
	v.SetDefault("resources.workers", d.Resources.Workers)
	v.SetDefault("resources.memory_bytes", d.Resources.MemoryBytes)
	v.SetDefault("resources.requests_per_sec", d.Resources.RequestsPerSec)
	v.SetDefault("resources.burst", d.Resources.Burst)
	v.SetDefault("resources.cache_bytes", d.Resources.CacheBytes)
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Search: SearchConfig{
			Method: "group-meeting",
			Mode:   "deterministic",
			Seed:   1,
			Params: map[string]any{
				"num_particles": 16,
				"base":          10,
				"min_group":     2,
				"max_group":     16,
			},
		},
		Trace: TraceConfig{
			Enabled:        false,
			Compression:    "zstd",
			Codec:          "go-json",
			SegmentRecords: 256,
			Prefix:         "traces",
		},
		Storage: StorageConfig{
			Driver: "local",
			Path:   "./rewardsearch-data",
			MinIO:  MinIOConfig{UseSSL: true},
		},
		Ledger: LedgerConfig{Table: "rewardsearch-runs"},
		Ranker: RankerConfig{
			Timeout: 60 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:  1,
				Timeout:      30 * time.Second,
				MinRequests:  3,
				FailureRatio: 0.6,
			},
		},
		Resources: ResourceConfig{
			Workers:    4,
			Burst:      1,
			CacheBytes: 64 << 20,
		},
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (want text or json)", c.Log.Format)
	}
	switch c.Storage.Driver {
	case "memory", "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for driver s3")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required for driver minio")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	if c.Ledger.Enabled && c.Ledger.Table == "" {
		return fmt.Errorf("ledger.table is required when the ledger is enabled")
	}
	return nil
}

// YAML renders c as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// overrideWithEnv applies the conventional credential variables.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" && cfg.Storage.MinIO.AccessKey == "" {
		cfg.Storage.MinIO.AccessKey = key
	}
	if secret := os.Getenv("MINIO_SECRET_KEY"); secret != "" && cfg.Storage.MinIO.SecretKey == "" {
		cfg.Storage.MinIO.SecretKey = secret
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		if cfg.Storage.S3.Region == "" {
			cfg.Storage.S3.Region = region
		}
		if cfg.Ledger.Region == "" {
			cfg.Ledger.Region = region
		}
	}
	if key := os.Getenv("RANKER_API_KEY"); key != "" && cfg.Ranker.APIKey == "" {
		cfg.Ranker.APIKey = key
	}
}
