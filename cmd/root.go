package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/dataprofiler/internal/config"
	"github.com/KaramelBytes/dataprofiler/internal/logging"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagLogLevel  string
	flagLogFormat string
	flagMaxRows   int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "dataprofiler",
	Short: "Profile CSV and Excel datasets and recommend data-quality fixes",
	Long: `dataprofiler loads a CSV, TSV or XLSX file, extracts a data-quality summary
(missing values, duplicates, column types, memory footprint), runs a fixed set of
heuristics over it and prints actionable recommendations. It can also render a
self-contained HTML profiling report or serve the same pipeline over HTTP.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dataprofiler/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagMaxRows, "max-rows", 0, "reject datasets with more rows than this (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if f.Changed("max-rows") && flagMaxRows > 0 {
		cfg.MaxRows = flagMaxRows
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

// effectiveConfig returns the loaded config, falling back to defaults when
// loading failed.
func effectiveConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return &cfgpkg.Global{
		ListenAddr:      ":8000",
		MaxUploadMB:     100,
		ReadTimeoutSec:  15,
		WriteTimeoutSec: 120,
		MaxRows:         1_000_000,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// maxRowsSetting prefers --max-rows over config.
func maxRowsSetting() int {
	if rootCmd.PersistentFlags().Changed("max-rows") && flagMaxRows > 0 {
		return flagMaxRows
	}
	return effectiveConfig().MaxRows
}

// newLogger builds the process logger from config.
func newLogger() (*zap.Logger, error) {
	c := effectiveConfig()
	return logging.New(c.LogLevel, c.LogFormat)
}
