package mappings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/checkpoint"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/fileio"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/worker"
)

// DefaultWorkers is the pool size for concurrent mapping walks.
const DefaultWorkers = 6

const poolCloseTimeout = 24 * time.Hour

// Options configures a Downloader.
type Options struct {
	// OutputDir receives one mapping artifact per ontology.
	OutputDir string
	// OntologyDir optionally restricts the work to ontologies with a
	// local source artifact.
	OntologyDir string
	// Workers is the pool size.
	Workers int
	// Metrics optionally registers pool metrics.
	Metrics prometheus.Registerer
}

// Downloader fetches the concept mappings of every catalog ontology into
// per-ontology gzip artifacts. Mappings are paginated server-side; each
// ontology's pages are walked sequentially while ontologies proceed in
// parallel.
type Downloader struct {
	client      *bioportal.Client
	out         *checkpoint.Store
	ontologyDir string
	workers     int
	metrics     prometheus.Registerer

	mu         sync.Mutex
	completed  []string
	shortfalls map[string]bioportal.WalkResult
	failures   map[string]string
}

// New builds a mappings Downloader writing into the output directory.
func New(client *bioportal.Client, opts Options) (*Downloader, error) {
	out, err := checkpoint.NewStore(opts.OutputDir)
	if err != nil {
		return nil, errors.Wrap(err, "mappings", "New", "create output dir")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Downloader{
		client:      client,
		out:         out,
		ontologyDir: opts.OntologyDir,
		workers:     workers,
		metrics:     opts.Metrics,
		shortfalls:  make(map[string]bioportal.WalkResult),
		failures:    make(map[string]string),
	}, nil
}

// ArtifactName returns the mapping artifact filename for an acronym.
func ArtifactName(acronym string) string {
	return acronym + ".map.json.gz"
}

// Run walks the mappings of every matching ontology. Per-ontology failures
// are recorded and isolated; the error return covers only setup problems.
func (d *Downloader) Run(ctx context.Context, allowed map[string]struct{}) error {
	metas, err := d.client.ListOntologies(ctx, allowed)
	if err != nil {
		return errors.Wrap(err, "mappings", "Run", "list catalog")
	}
	metas = d.restrictToLocal(metas)

	var pending []*bioportal.OntologyMeta
	for _, meta := range metas {
		if d.out.Done(ArtifactName(meta.Acronym)) {
			slog.Debug("Mappings already downloaded, skipping", "acronym", meta.Acronym)
			continue
		}
		pending = append(pending, meta)
	}
	slog.Info("Starting mapping download",
		"output_dir", d.out.Root(), "total", len(metas), "pending", len(pending), "workers", d.workers)

	poolOpts := []worker.Option[*bioportal.OntologyMeta]{}
	if d.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[*bioportal.OntologyMeta](d.metrics, "mapping_download"))
	}
	pool := worker.NewPool(d.workers, 2*d.workers, d.process, poolOpts...)
	if err := pool.Start(ctx); err != nil {
		return errors.Wrap(err, "mappings", "Run", "start worker pool")
	}
	for _, meta := range pending {
		if err := pool.Submit(ctx, meta); err != nil {
			pool.Close(poolCloseTimeout)
			return errors.Wrap(err, "mappings", "Run", "submit work")
		}
	}
	if err := pool.Close(poolCloseTimeout); err != nil {
		slog.Warn("Worker pool did not drain cleanly", "error", err)
	}

	slog.Info("Mapping download finished",
		"completed", len(d.completed), "shortfalls", len(d.shortfalls), "failures", len(d.failures))
	return nil
}

// restrictToLocal drops catalog entries without a source artifact in the
// companion ontology dir, when one is configured.
func (d *Downloader) restrictToLocal(metas []*bioportal.OntologyMeta) []*bioportal.OntologyMeta {
	if d.ontologyDir == "" {
		return metas
	}
	local, err := localAcronyms(d.ontologyDir)
	if err != nil {
		slog.Warn("Could not read ontology dir, processing full catalog",
			"dir", d.ontologyDir, "error", err)
		return metas
	}
	var kept []*bioportal.OntologyMeta
	for _, meta := range metas {
		if _, ok := local[meta.Acronym]; ok {
			kept = append(kept, meta)
		}
	}
	slog.Info("Restricted mapping download to local ontologies",
		"dir", d.ontologyDir, "kept", len(kept), "catalog", len(metas))
	return kept
}

// localAcronyms lists the acronyms present in an ontology data dir, one per
// source file (name up to the first dot) or per-ontology directory.
func localAcronyms(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	acronyms := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			acronyms[name] = struct{}{}
			continue
		}
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		if idx := strings.IndexByte(name, '.'); idx > 0 {
			acronyms[name[:idx]] = struct{}{}
		}
	}
	return acronyms, nil
}

// process walks and persists one ontology's mappings.
func (d *Downloader) process(ctx context.Context, meta *bioportal.OntologyMeta) error {
	records, result, err := d.client.WalkPages(ctx, d.client.MappingsURL(meta))
	if err != nil {
		if len(records) == 0 {
			slog.Warn("Mapping walk failed", "acronym", meta.Acronym, "error", err)
			d.recordFailure(meta.Acronym, err)
			return err
		}
		// A mid-walk failure still yields the completed pages; persist
		// them and report the shortfall.
		slog.Warn("Mapping walk terminated early, keeping completed pages",
			"acronym", meta.Acronym, "pages", result.LastPage, "page_count", result.PageCount, "error", err)
	}

	target := d.out.Path(ArtifactName(meta.Acronym))
	af, err := fileio.NewAtomicFile(target)
	if err != nil {
		err = errors.Wrap(err, "mappings", "process", "create mapping file")
		d.recordFailure(meta.Acronym, err)
		return err
	}
	defer af.Close()

	if _, err := af.Write([]byte("[")); err != nil {
		d.recordFailure(meta.Acronym, err)
		return errors.Wrap(err, "mappings", "process", "write mapping frame")
	}
	for i, record := range records {
		if i > 0 {
			if _, err := af.Write([]byte(",\n")); err != nil {
				d.recordFailure(meta.Acronym, err)
				return errors.Wrap(err, "mappings", "process", "write record separator")
			}
		}
		if _, err := af.Write(record); err != nil {
			d.recordFailure(meta.Acronym, err)
			return errors.Wrap(err, "mappings", "process", "write mapping record")
		}
	}
	if _, err := af.Write([]byte("]")); err != nil {
		d.recordFailure(meta.Acronym, err)
		return errors.Wrap(err, "mappings", "process", "write mapping frame")
	}
	if err := af.Commit(); err != nil {
		d.recordFailure(meta.Acronym, err)
		return errors.Wrap(err, "mappings", "process", "commit mapping file")
	}

	d.recordResult(meta.Acronym, result)
	if result.Complete() {
		slog.Info("Mappings downloaded",
			"acronym", meta.Acronym, "records", result.Records, "pages", result.LastPage)
	} else {
		slog.Warn("Mappings downloaded incompletely",
			"acronym", meta.Acronym, "records", result.Records,
			"pages", result.LastPage, "page_count", result.PageCount)
	}
	return nil
}

func (d *Downloader) recordResult(acronym string, result bioportal.WalkResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = append(d.completed, acronym)
	if !result.Complete() {
		d.shortfalls[acronym] = result
	}
}

func (d *Downloader) recordFailure(acronym string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[acronym] = err.Error()
}

// Report renders the run summary, including incomplete walks with their
// obtained versus declared page counts.
func (d *Downloader) Report() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Mapping download report\n")
	fmt.Fprintf(&b, "Completed ontologies (%d): %s\n", len(d.completed), joinSorted(d.completed))
	fmt.Fprintf(&b, "Incomplete walks (%d):\n", len(d.shortfalls))
	for _, acronym := range sortedKeys(d.shortfalls) {
		result := d.shortfalls[acronym]
		fmt.Fprintf(&b, "  %s: got %d of %d pages (%d records)\n",
			acronym, result.LastPage, result.PageCount, result.Records)
	}
	fmt.Fprintf(&b, "Failed ontologies (%d):\n", len(d.failures))
	for _, acronym := range sortedStringKeys(d.failures) {
		fmt.Fprintf(&b, "  %s: %s\n", acronym, d.failures[acronym])
	}
	return b.String()
}

func joinSorted(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func sortedKeys(m map[string]bioportal.WalkResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
