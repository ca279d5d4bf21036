package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/c360/shopstream/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	Backend     string
	ListenAddr  string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SHOPSTREAM_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SHOPSTREAM_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SHOPSTREAM_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SHOPSTREAM_CONFIG)")

	flag.StringVar(&cfg.Backend, "backend",
		getEnv("SHOPSTREAM_BACKEND", backendAll),
		"Backend to run: user, item, or all (env: SHOPSTREAM_BACKEND)")

	flag.StringVar(&cfg.ListenAddr, "listen",
		getEnv("SHOPSTREAM_WORKER_LISTEN", ""),
		"Address for /healthz and /metrics, empty to disable (env: SHOPSTREAM_WORKER_LISTEN)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SHOPSTREAM_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error; empty defers to config (env: SHOPSTREAM_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SHOPSTREAM_LOG_FORMAT", ""),
		"Log format: json, text; empty defers to config (env: SHOPSTREAM_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validBackends := []string{backendUser, backendItem, backendAll}
	if !contains(validBackends, cfg.Backend) {
		return fmt.Errorf("invalid backend: %s (must be user, item, or all)", cfg.Backend)
	}

	validLevels := []string{"", "debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"", "json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

// initializeCLI parses flags and handles the exit-early flags
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// resolveLogSettings prefers CLI flags over the config file
func resolveLogSettings(cliCfg *CLIConfig, cfg *config.Config) (level, format string) {
	level = cliCfg.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	format = cliCfg.LogFormat
	if format == "" {
		format = cfg.Logging.Format
	}
	return level, format
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - ShopStream backend worker

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run both reference backends
  %s --config=/path/to/config.json

  # Run only the item backend with ops endpoints
  %s --backend=item --listen=:8081

  # Run with environment variables
  export SHOPSTREAM_CONFIG=/etc/shopstream/config.json
  export SHOPSTREAM_BACKEND=user
  %s

  # Validate configuration only
  %s --config=/path/to/config.json --validate

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

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
