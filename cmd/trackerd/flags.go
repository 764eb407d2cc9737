package main

import (
	"flag"
	"fmt"
)

// CLIConfig holds command-line options.
type CLIConfig struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Validate   bool
}

// parseFlags parses the command line. The bool return is true when the
// process should exit immediately (version request).
func parseFlags() (*CLIConfig, bool) {
	cfg := &CLIConfig{}

	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Path to YAML configuration file (empty = defaults)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", "json", "Log format: json or text")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true
	}
	return cfg, false
}
