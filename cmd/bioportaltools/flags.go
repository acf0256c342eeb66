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
	APIKey      string
	OntologyDir string
	ReportPath  string
	ShowVersion bool
	ShowHelp    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("BIOPORTAL_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: BIOPORTAL_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("BIOPORTAL_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: BIOPORTAL_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("BIOPORTAL_LOG_FORMAT", "text"),
		"Log format: json, text (env: BIOPORTAL_LOG_FORMAT)")

	flag.StringVar(&cfg.APIKey, "api-key",
		getEnv("BIOPORTAL_API_KEY", ""),
		"API key for the remote portal (env: BIOPORTAL_API_KEY)")

	flag.StringVar(&cfg.OntologyDir, "ontology-dir",
		getEnv("BIOPORTAL_ONTOLOGY_DIR", ""),
		"Restrict the mappings task to ontologies downloaded into this directory (env: BIOPORTAL_ONTOLOGY_DIR)")

	flag.StringVar(&cfg.ReportPath, "report",
		getEnv("BIOPORTAL_REPORT", "downloadreport.txt"),
		"Path of the final report file (env: BIOPORTAL_REPORT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - BioPortal ontology sync and concept extraction

Usage: %s [options] <task> [arguments...]

Tasks:
  download <data dir> <info dir> [api key] [acronyms...]
      Sync ontology metadata and source files.
  mappings <mappings dir> [api key] [acronyms...]
      Download concept mappings, one artifact per ontology.
  extract <ontology dir> <info dir> <output dir> [apply-reasoning] [filter-deprecated] [acronyms...]
      Extract concept class records from downloaded ontologies.

Missing required arguments are prompted for interactively; without a task
argument an interactive menu is shown.

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Sync all ontologies
  %s download /data/ontologies /data/info

  # Extract classes of two ontologies, dropping deprecated concepts
  %s extract /data/ontologies /data/info /data/classes false true GO MESH

  # Run with a config file and JSON logs
  export BIOPORTAL_API_KEY=...
  %s --config=/etc/bioportal/config.json --log-format=json download /data/ontologies /data/info

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
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
