package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".dataprofiler"

// Global configuration structure.
type Global struct {
	// HTTP service
	ListenAddr      string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxUploadMB     int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	ReadTimeoutSec  int      `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`

	// Analysis
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// OpenTelemetry; the exporter endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT.
	OTelEnabled bool `mapstructure:"otel_enabled" yaml:"otel_enabled"`

	// Report artifact storage (MinIO / S3). Disabled when MinioEndpoint is empty.
	MinioEndpoint  string `mapstructure:"minio_endpoint" yaml:"minio_endpoint"`
	MinioRegion    string `mapstructure:"minio_region" yaml:"minio_region"`
	MinioBucket    string `mapstructure:"minio_bucket" yaml:"minio_bucket"`
	MinioAccessKey string `mapstructure:"minio_access_key" yaml:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key" yaml:"minio_secret_key"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl" yaml:"minio_use_ssl"`
}

// Keys lists every settable configuration key.
var Keys = []string{
	"listen_addr", "allowed_origins", "max_upload_mb", "read_timeout_sec", "write_timeout_sec",
	"max_rows", "log_level", "log_format", "otel_enabled",
	"minio_endpoint", "minio_region", "minio_bucket", "minio_access_key", "minio_secret_key", "minio_use_ssl",
}

// DefaultPath returns ~/.dataprofiler/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataprofiler/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATAPROFILER")
	v.AutomaticEnv()
	// Unprefixed name kept for deployments that already set it.
	_ = v.BindEnv("allowed_origins", "DATAPROFILER_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")

	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("max_upload_mb", 100)
	v.SetDefault("read_timeout_sec", 15)
	v.SetDefault("write_timeout_sec", 120)
	v.SetDefault("max_rows", 1_000_000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_region", "us-east-1")
	v.SetDefault("minio_bucket", "dataprofiler-reports")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_use_ssl", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, dirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.AllowedOrigins = SplitList(c.AllowedOrigins)
	return &c, nil
}

// SplitList flattens comma-separated entries, as delivered by env vars, and
// drops blanks.
func SplitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
