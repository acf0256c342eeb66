package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/checkpoint"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/ontology"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/fileio"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/worker"
)

// DefaultWorkers is the pool size for concurrent class extraction.
const DefaultWorkers = 8

const (
	filenameMarker   = "download.filename"
	poolCloseTimeout = 24 * time.Hour
)

// Options configures an Extractor.
type Options struct {
	// OntologyDir holds the downloaded ontology source files.
	OntologyDir string
	// InfoDir holds the per-ontology submission artifacts.
	InfoDir string
	// OutputDir receives one class artifact per ontology.
	OutputDir string
	// ApplyReasoning selects a graph with inferred parentage.
	ApplyReasoning bool
	// FilterDeprecated drops obsolete concepts from the output. When
	// false they are emitted with their obsolete marker set.
	FilterDeprecated bool
	// Workers is the pool size.
	Workers int
	// Metrics optionally registers pool metrics.
	Metrics prometheus.Registerer
}

// source is one extractable ontology: its acronym and the path of the main
// source file.
type source struct {
	acronym string
	path    string
}

// Extractor turns downloaded ontology source files into per-concept class
// records, one JSON document per line, gzip-compressed.
type Extractor struct {
	loader ontology.Loader
	out    *checkpoint.Store
	opts   Options
}

// New builds an Extractor parsing ontologies through the given loader.
func New(loader ontology.Loader, opts Options) (*Extractor, error) {
	if loader == nil {
		return nil, errors.WrapPermanent(errors.ErrParse, "extract", "New", "require a loader")
	}
	out, err := checkpoint.NewStore(opts.OutputDir)
	if err != nil {
		return nil, errors.Wrap(err, "extract", "New", "create output dir")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Extractor{loader: loader, out: out, opts: opts}, nil
}

// ArtifactName returns the class artifact filename for an acronym.
func ArtifactName(acronym string) string {
	return acronym + ".cls.json.gz"
}

// Run extracts classes from every ontology in the source dir matching the
// allow-list (nil means all). Unparsable ontologies are logged and
// isolated; the error return covers only setup problems.
func (e *Extractor) Run(ctx context.Context, allowed map[string]struct{}) error {
	sources, err := e.collectSources(allowed)
	if err != nil {
		return err
	}

	var pending []source
	for _, src := range sources {
		if e.out.Done(ArtifactName(src.acronym)) {
			slog.Debug("Classes already extracted, skipping", "acronym", src.acronym)
			continue
		}
		pending = append(pending, src)
	}
	slog.Info("Starting class extraction", "ontology_dir", e.opts.OntologyDir,
		"output_dir", e.out.Root(), "total", len(sources), "pending", len(pending),
		"workers", e.opts.Workers, "apply_reasoning", e.opts.ApplyReasoning,
		"filter_deprecated", e.opts.FilterDeprecated)

	poolOpts := []worker.Option[source]{}
	if e.opts.Metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[source](e.opts.Metrics, "class_extraction"))
	}
	pool := worker.NewPool(e.opts.Workers, 2*e.opts.Workers, e.process, poolOpts...)
	if err := pool.Start(ctx); err != nil {
		return errors.Wrap(err, "extract", "Run", "start worker pool")
	}
	for _, src := range pending {
		if err := pool.Submit(ctx, src); err != nil {
			pool.Close(poolCloseTimeout)
			return errors.Wrap(err, "extract", "Run", "submit work")
		}
	}
	if err := pool.Close(poolCloseTimeout); err != nil {
		slog.Warn("Worker pool did not drain cleanly", "error", err)
	}
	slog.Info("Class extraction finished")
	return nil
}

// collectSources scans the ontology dir for extractable sources.
func (e *Extractor) collectSources(allowed map[string]struct{}) ([]source, error) {
	entries, err := os.ReadDir(e.opts.OntologyDir)
	if err != nil {
		return nil, errors.Wrap(err, "extract", "collectSources", "read ontology dir")
	}

	var sources []source
	for _, entry := range entries {
		name := entry.Name()
		acronym := acronymOf(name)
		if allowed != nil {
			if _, ok := allowed[acronym]; !ok {
				continue
			}
		}

		if entry.IsDir() {
			path, ok := mainOntologyFile(filepath.Join(e.opts.OntologyDir, name), name)
			if !ok {
				slog.Warn("Could not identify the main ontology file, skipping", "dir", name)
				continue
			}
			sources = append(sources, source{acronym: name, path: path})
			continue
		}

		if !isOntologySource(name) {
			slog.Debug("Not an ontology source, skipping", "file", name)
			continue
		}
		sources = append(sources, source{acronym: acronym, path: filepath.Join(e.opts.OntologyDir, name)})
	}
	return sources, nil
}

// process extracts one ontology into its class artifact.
func (e *Extractor) process(ctx context.Context, src source) error {
	graph, err := e.loader.Load(ctx, src.path, e.opts.ApplyReasoning)
	if err != nil {
		slog.Warn("Ontology could not be parsed, skipping",
			"acronym", src.acronym, "file", src.path, "error", err)
		return err
	}
	props := ontology.NewPropertySet(e.readSubmission(src.acronym))

	af, err := fileio.NewAtomicFile(e.out.Path(ArtifactName(src.acronym)))
	if err != nil {
		return errors.Wrap(err, "extract", "process", "create class file")
	}
	defer af.Close()

	written := 0
	for _, concept := range graph.Concepts() {
		record := ontology.Resolve(concept, props, graph)
		if record.Obsolete && e.opts.FilterDeprecated {
			continue
		}
		line, err := json.Marshal(record)
		if err != nil {
			return errors.WrapPermanent(err, "extract", "process", "marshal class record")
		}
		if _, err := af.Write(append(line, '\n')); err != nil {
			return errors.Wrap(err, "extract", "process", "write class record")
		}
		written++
	}
	if err := af.Commit(); err != nil {
		return errors.Wrap(err, "extract", "process", "commit class file")
	}

	slog.Info("Classes extracted", "acronym", src.acronym, "classes", written)
	return nil
}

// readSubmission loads the stored submission for an ontology, nil when
// absent or unreadable.
func (e *Extractor) readSubmission(acronym string) *bioportal.Submission {
	if e.opts.InfoDir == "" {
		return nil
	}
	data, err := fileio.ReadFile(filepath.Join(e.opts.InfoDir, acronym+".sub.json.gz"))
	if err != nil {
		slog.Debug("No stored submission, using default properties", "acronym", acronym)
		return nil
	}
	var sub bioportal.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		slog.Warn("Stored submission unreadable, using default properties",
			"acronym", acronym, "error", err)
		return nil
	}
	return &sub
}

// acronymOf derives the ontology acronym from an artifact name, everything
// up to the first dot.
func acronymOf(name string) string {
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

// isOntologySource reports whether a filename looks like an ontology source
// file, ignoring a compression suffix.
func isOntologySource(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	lower = strings.TrimSuffix(lower, ".gzip")
	switch filepath.Ext(lower) {
	case ".obo", ".owl", ".umls":
		return true
	default:
		return false
	}
}

// mainOntologyFile identifies the main source inside an expanded archive
// directory: first via the recorded download filename, then via the acronym
// prefix. Ambiguity means the directory is skipped.
func mainOntologyFile(dir, acronym string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == filenameMarker {
			continue
		}
		if isOntologySource(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	if len(names) == 1 {
		return filepath.Join(dir, names[0]), true
	}

	if marker, err := os.ReadFile(filepath.Join(dir, filenameMarker)); err == nil {
		stem := strings.TrimSpace(string(marker))
		stem = strings.TrimSuffix(strings.ToLower(stem), ".zip")
		if path, ok := uniqueWithPrefix(dir, names, stem); ok {
			return path, true
		}
	}
	return uniqueWithPrefix(dir, names, strings.ToLower(acronym))
}

// uniqueWithPrefix resolves the single candidate whose name starts with the
// prefix, case-insensitively.
func uniqueWithPrefix(dir string, names []string, prefix string) (string, bool) {
	var matches []string
	for _, name := range names {
		if strings.HasPrefix(strings.ToLower(name), prefix+".") {
			matches = append(matches, name)
		}
	}
	if len(matches) == 1 {
		return filepath.Join(dir, matches[0]), true
	}
	return "", false
}
