package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/dataprofiler/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set dataprofiler configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "read_timeout_sec: %d\n", cfg.ReadTimeoutSec)
		fmt.Fprintf(out, "write_timeout_sec: %d\n", cfg.WriteTimeoutSec)
		fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "otel_enabled: %t\n", cfg.OTelEnabled)
		if cfg.MinioEndpoint != "" {
			fmt.Fprintf(out, "minio_endpoint: %s\n", cfg.MinioEndpoint)
			fmt.Fprintf(out, "minio_region: %s\n", cfg.MinioRegion)
			fmt.Fprintf(out, "minio_bucket: %s\n", cfg.MinioBucket)
			fmt.Fprintf(out, "minio_access_key: %s\n", mask(cfg.MinioAccessKey))
			fmt.Fprintf(out, "minio_secret_key: %s\n", mask(cfg.MinioSecretKey))
			fmt.Fprintf(out, "minio_use_ssl: %t\n", cfg.MinioUseSSL)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "listen_addr":
		c.ListenAddr = val
	case "allowed_origins":
		c.AllowedOrigins = cfgpkg.SplitList([]string{val})
	case "max_upload_mb":
		return setPositiveInt(&c.MaxUploadMB, key, val)
	case "read_timeout_sec":
		return setPositiveInt(&c.ReadTimeoutSec, key, val)
	case "write_timeout_sec":
		return setPositiveInt(&c.WriteTimeoutSec, key, val)
	case "max_rows":
		return setPositiveInt(&c.MaxRows, key, val)
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "otel_enabled":
		return setBool(&c.OTelEnabled, key, val)
	case "minio_endpoint":
		c.MinioEndpoint = val
	case "minio_region":
		c.MinioRegion = val
	case "minio_bucket":
		c.MinioBucket = val
	case "minio_access_key":
		c.MinioAccessKey = val
	case "minio_secret_key":
		c.MinioSecretKey = val
	case "minio_use_ssl":
		return setBool(&c.MinioUseSSL, key, val)
	default:
		return fmt.Errorf("unknown key: %s (valid: %s)", key, strings.Join(cfgpkg.Keys, ", "))
	}
	return nil
}

func setPositiveInt(dst *int, key, val string) error {
	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return fmt.Errorf("invalid positive int for %s: %v", key, val)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key, val string) error {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	*dst = b
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
