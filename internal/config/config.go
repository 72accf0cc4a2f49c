// Package config provides the configuration for the MooseDB server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "MOOSEDB"

// Config holds the configuration of a MooseDB process.
type Config struct {
	// DataDir is the base directory for the database file and local backups
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Storage engine configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Auth configuration
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Backup configuration
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address of the API server
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether the gRPC health server is started
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StorageConfig holds SQLite engine configuration.
type StorageConfig struct {
	// PoolSize is the maximum number of open SQLite connections
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// AcquireTimeout bounds how long an operation waits for a pooled connection
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`

	// BusyTimeout is passed to SQLite as _busy_timeout
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	// TokenTTL is the lifetime of tokens issued by /auth/login
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// CatalogConfig holds metadata catalog configuration.
type CatalogConfig struct {
	// SchemaCache enables the in-memory field cache
	SchemaCache bool `json:"schema_cache" yaml:"schema_cache"`
}

// BackupConfig holds backup target configuration.
type BackupConfig struct {
	// Type is the object storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to every snapshot key
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (MinIO and friends)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/moosedb",
		HTTP: HTTPConfig{
			Addr:         "127.0.0.1:8855",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    "127.0.0.1:8856",
			Enabled: false,
		},
		Storage: StorageConfig{
			PoolSize:       8,
			AcquireTimeout: 5 * time.Second,
			BusyTimeout:    5 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Catalog: CatalogConfig{
			SchemaCache: false,
		},
		Backup: BackupConfig{
			Type:   "local",
			Path:   "",
			Prefix: "snapshots",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/moosedb"
	}

	if c.Backup.Path == "" {
		c.Backup.Path = filepath.Join(c.DataDir, "backups")
	}
}

// DatabasePath returns the path to the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "database.sqlite")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return fmt.Errorf("grpc.addr is required when grpc is enabled")
	}

	if c.Storage.PoolSize < 1 {
		return fmt.Errorf("storage.pool_size must be at least 1, got %d", c.Storage.PoolSize)
	}

	if c.Storage.AcquireTimeout <= 0 {
		return fmt.Errorf("storage.acquire_timeout must be positive")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Backup.Type != "local" && c.Backup.Type != "s3" {
		return fmt.Errorf("invalid backup type: %s (must be local or s3)", c.Backup.Type)
	}

	if c.Backup.Type == "s3" && c.Backup.S3.Bucket == "" {
		return fmt.Errorf("backup.s3.bucket is required when backup type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables onto cfg.
// Keys map to MOOSEDB_ variables with dots replaced by underscores,
// e.g. storage.pool_size is read from MOOSEDB_STORAGE_POOL_SIZE.
func LoadFromEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("data_dir", &cfg.DataDir)

	// HTTP configuration
	str("http.addr", &cfg.HTTP.Addr)
	dur("http.read_timeout", &cfg.HTTP.ReadTimeout)
	dur("http.write_timeout", &cfg.HTTP.WriteTimeout)
	dur("http.idle_timeout", &cfg.HTTP.IdleTimeout)

	// gRPC configuration
	str("grpc.addr", &cfg.GRPC.Addr)
	boolean("grpc.enabled", &cfg.GRPC.Enabled)

	// Storage configuration
	if v.IsSet("storage.pool_size") {
		cfg.Storage.PoolSize = v.GetInt("storage.pool_size")
	}
	dur("storage.acquire_timeout", &cfg.Storage.AcquireTimeout)
	dur("storage.busy_timeout", &cfg.Storage.BusyTimeout)

	dur("auth.token_ttl", &cfg.Auth.TokenTTL)
	boolean("catalog.schema_cache", &cfg.Catalog.SchemaCache)

	// Backup configuration
	str("backup.type", &cfg.Backup.Type)
	str("backup.path", &cfg.Backup.Path)
	str("backup.prefix", &cfg.Backup.Prefix)
	str("backup.s3.bucket", &cfg.Backup.S3.Bucket)
	str("backup.s3.region", &cfg.Backup.S3.Region)
	str("backup.s3.endpoint", &cfg.Backup.S3.Endpoint)
	boolean("backup.s3.use_path_style", &cfg.Backup.S3.UsePathStyle)
}

// Load builds a configuration from the defaults, an optional config file and the
// environment, then resolves derived paths. Flags are applied by the caller.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadFromEnv(cfg)
	cfg.Resolve()
	return cfg, nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Backup.Type == "local" {
		dirs = append(dirs, c.Backup.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
