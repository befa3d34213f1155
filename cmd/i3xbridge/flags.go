package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Debug       bool
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("I3XBRIDGE_CONFIG", "configs/bridge.yaml"),
		"Path to configuration file (env: I3XBRIDGE_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("I3XBRIDGE_CONFIG", "configs/bridge.yaml"),
		"Path to configuration file (env: I3XBRIDGE_CONFIG)")

	// Empty means "use the config file's logging section".
	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("I3XBRIDGE_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: I3XBRIDGE_LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("I3XBRIDGE_LOG_FORMAT", ""),
		"Log format: json, text (env: I3XBRIDGE_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - MQTT to i3X bridge

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/i3xbridge/bridge.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
