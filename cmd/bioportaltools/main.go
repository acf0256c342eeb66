// Package main implements the command-line entry point for the BioPortal
// ontology tools: bulk ontology sync, mapping download and concept class
// extraction against a BioPortal-style REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/config"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/download"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/extract"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/mappings"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/ontology"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/retry"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "bioportaltools"
)

const (
	taskDownload = "download"
	taskMappings = "mappings"
	taskExtract  = "extract"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Task failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return err
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	slog.SetDefault(setupLogger(cliCfg.LogLevel, cliCfg.LogFormat))

	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPrompter()
	args := flag.Args()
	task := ""
	if len(args) > 0 {
		task = strings.ToLower(args[0])
		args = args[1:]
	} else {
		task = p.askTask()
	}

	switch task {
	case taskDownload:
		return runDownload(ctx, cfg, cliCfg, p, args)
	case taskMappings:
		return runMappings(ctx, cfg, cliCfg, p, args)
	case taskExtract:
		return runExtract(ctx, cfg, p, args)
	default:
		return fmt.Errorf("unknown task %q, expected download, mappings or extract", task)
	}
}

func runDownload(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, p *prompter, args []string) error {
	dataDir := argOr(args, 0, p, "Ontology data directory")
	infoDir := argOr(args, 1, p, "Ontology info directory")
	apiKey, rest := resolveAPIKey(cfg, cliCfg, p, args, 2)

	client := newClient(cfg, apiKey)
	d, err := download.New(client, download.Options{
		InfoDir:         infoDir,
		DataDir:         dataDir,
		Workers:         cfg.Download.Workers,
		RetrierAttempts: cfg.Download.RetrierAttempts,
		RetrierInterval: cfg.Download.RetrierInterval.Std(),
		Metrics:         prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}

	stats, err := d.Run(ctx, allowList(cfg, rest))
	if stats != nil {
		writeReport(cliCfg.ReportPath, stats.Report())
	}
	return err
}

func runMappings(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, p *prompter, args []string) error {
	outputDir := argOr(args, 0, p, "Mappings output directory")
	apiKey, rest := resolveAPIKey(cfg, cliCfg, p, args, 1)

	ontologyDir := cliCfg.OntologyDir
	if ontologyDir == "" {
		ontologyDir = cfg.Dirs.Data
	}

	client := newClient(cfg, apiKey)
	d, err := mappings.New(client, mappings.Options{
		OutputDir:   outputDir,
		OntologyDir: ontologyDir,
		Workers:     cfg.Mappings.Workers,
		Metrics:     prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}

	err = d.Run(ctx, allowList(cfg, rest))
	writeReport(cliCfg.ReportPath, d.Report())
	return err
}

func runExtract(ctx context.Context, cfg *config.Config, p *prompter, args []string) error {
	ontologyDir := argOr(args, 0, p, "Ontology data directory")
	infoDir := argOr(args, 1, p, "Ontology info directory")
	outputDir := argOr(args, 2, p, "Class output directory")
	applyReasoning := boolArgOr(args, 3, p, "Apply reasoning", cfg.Extract.ApplyReasoning)
	filterDeprecated := boolArgOr(args, 4, p, "Filter deprecated concepts", cfg.Extract.FilterDeprecated)
	var rest []string
	if len(args) > 5 {
		rest = args[5:]
	}

	e, err := extract.New(ontology.NewOBOLoader(), extract.Options{
		OntologyDir:      ontologyDir,
		InfoDir:          infoDir,
		OutputDir:        outputDir,
		ApplyReasoning:   applyReasoning,
		FilterDeprecated: filterDeprecated,
		Workers:          cfg.Extract.Workers,
		Metrics:          prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	return e.Run(ctx, allowList(cfg, rest))
}

func newClient(cfg *config.Config, apiKey string) *bioportal.Client {
	return bioportal.NewClient(apiKey,
		bioportal.WithBaseURL(cfg.BaseURL),
		bioportal.WithRetryConfig(retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Std(),
			Multiplier:   2.5,
			AddJitter:    true,
		}),
		bioportal.WithClientMetrics(prometheus.DefaultRegisterer),
	)
}

// resolveAPIKey finds the credential among flag, config, the positional
// argument at idx and finally an interactive prompt. The remaining
// positional arguments are returned as acronym restrictions.
func resolveAPIKey(cfg *config.Config, cliCfg *CLIConfig, p *prompter, args []string, idx int) (string, []string) {
	if cliCfg.APIKey != "" || cfg.APIKey != "" {
		key := cliCfg.APIKey
		if key == "" {
			key = cfg.APIKey
		}
		if len(args) > idx {
			return key, args[idx:]
		}
		return key, nil
	}

	var rest []string
	key := ""
	if len(args) > idx {
		key = args[idx]
		rest = args[idx+1:]
	}
	if key == "" {
		key = p.askRequired("API key")
	}
	return key, rest
}

// allowList merges positional acronym restrictions with the configured
// ones; positional arguments win.
func allowList(cfg *config.Config, acronyms []string) map[string]struct{} {
	if len(acronyms) == 0 {
		return cfg.AllowList()
	}
	allowed := make(map[string]struct{}, len(acronyms))
	for _, acronym := range acronyms {
		allowed[strings.ToUpper(strings.TrimSpace(acronym))] = struct{}{}
	}
	return allowed
}

// writeReport prints the report and persists it next to the run.
func writeReport(path, report string) {
	fmt.Println(report)
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		slog.Warn("Could not write report file", "path", path, "error", err)
	}
}
