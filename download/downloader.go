package download

import (
	"archive/zip"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/checkpoint"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/fileio"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/worker"
)

const (
	// OntologyListFile is the persisted catalog artifact in the info dir.
	OntologyListFile = "ONTOLOGY_LIST.gz"
	// FilenameMarker inside an expanded archive directory records the name
	// of the originally downloaded file.
	FilenameMarker = "download.filename"

	// DefaultWorkers is the primary pool size for ontology sync.
	DefaultWorkers = 6

	poolCloseTimeout = 24 * time.Hour
	defaultLanguage  = "owl"
)

// Options configures a Downloader. Zero values fall back to defaults.
type Options struct {
	// InfoDir receives the metadata artifacts per ontology.
	InfoDir string
	// DataDir receives the ontology source files.
	DataDir string
	// Workers is the primary pool size.
	Workers int
	// RetrierAttempts bounds the background retry tier per resource.
	RetrierAttempts int
	// RetrierInterval is the pause between background attempts.
	RetrierInterval time.Duration
	// Metrics optionally registers pool metrics.
	Metrics prometheus.Registerer
}

// Downloader syncs the remote ontology catalog into the local info and data
// directories. Resources are processed concurrently; every artifact doubles
// as its own checkpoint, so an interrupted run resumes where it stopped.
type Downloader struct {
	client  *bioportal.Client
	info    *checkpoint.Store
	data    *checkpoint.Store
	workers int
	metrics prometheus.Registerer

	stats   *Stats
	retrier *Retrier

	// Filled once by Run before the pool starts, read-only afterwards.
	metas map[string]*bioportal.OntologyMeta
}

// New builds a Downloader writing into the given directories.
func New(client *bioportal.Client, opts Options) (*Downloader, error) {
	info, err := checkpoint.NewStore(opts.InfoDir)
	if err != nil {
		return nil, errors.Wrap(err, "download", "New", "create info dir")
	}
	data, err := checkpoint.NewStore(opts.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "download", "New", "create data dir")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	d := &Downloader{
		client:  client,
		info:    info,
		data:    data,
		workers: workers,
		metrics: opts.Metrics,
		stats:   NewStats(),
		metas:   make(map[string]*bioportal.OntologyMeta),
	}
	d.retrier = NewRetrier(opts.RetrierAttempts, opts.RetrierInterval, d.syncResource, d.stats)
	return d, nil
}

// Stats exposes the run accumulator.
func (d *Downloader) Stats() *Stats {
	return d.stats
}

// Run syncs every catalog entry matching the allow-list (nil means all) and
// blocks until the primary pool and the background retrier have finished.
// The returned stats are complete once Run returns.
func (d *Downloader) Run(ctx context.Context, allowed map[string]struct{}) (*Stats, error) {
	slog.Info("Starting ontology download", "run_id", d.stats.RunID(),
		"info_dir", d.info.Root(), "data_dir", d.data.Root(), "workers", d.workers)

	metas, err := d.client.ListOntologies(ctx, allowed)
	if err != nil {
		return d.stats, errors.Wrap(err, "download", "Run", "list catalog")
	}
	d.client.AttachDetails(ctx, metas)

	if err := d.writeCatalog(metas); err != nil {
		return d.stats, err
	}

	var pending []string
	for _, meta := range metas {
		if meta.SummaryOnly {
			d.stats.AddSummaryOnly(meta.Acronym)
			continue
		}
		d.metas[meta.Acronym] = meta
		if d.ontologyFileDone(meta.Acronym) {
			slog.Debug("Ontology already downloaded, skipping", "acronym", meta.Acronym)
			continue
		}
		pending = append(pending, meta.Acronym)
	}
	slog.Info("Catalog listed", "total", len(metas), "pending", len(pending))

	poolOpts := []worker.Option[string]{}
	if d.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[string](d.metrics, "ontology_download"))
	}
	pool := worker.NewPool(d.workers, 2*d.workers, d.process, poolOpts...)
	if err := pool.Start(ctx); err != nil {
		return d.stats, errors.Wrap(err, "download", "Run", "start worker pool")
	}
	for _, acronym := range pending {
		if err := pool.Submit(ctx, acronym); err != nil {
			pool.Close(poolCloseTimeout)
			return d.stats, errors.Wrap(err, "download", "Run", "submit work")
		}
	}
	if err := pool.Close(poolCloseTimeout); err != nil {
		slog.Warn("Worker pool did not drain cleanly", "error", err)
	}

	d.retrier.Wait()
	slog.Info("Ontology download finished", "run_id", d.stats.RunID())
	return d.stats, nil
}

// process runs one resource through the full sync and routes its outcome
// into the stats buckets and, for transient failures, the background tier.
func (d *Downloader) process(ctx context.Context, acronym string) error {
	err := d.syncResource(ctx, acronym)
	if err == nil {
		return nil
	}

	switch {
	case stderrors.Is(err, errors.ErrAccessDenied):
		slog.Warn("Ontology access denied", "acronym", acronym)
		d.stats.AddDenied(acronym)
		d.cleanup(acronym)
	case stderrors.Is(err, errors.ErrFileNotAvailable):
		slog.Warn("Ontology has no downloadable file", "acronym", acronym)
		d.stats.AddWithoutFile(acronym)
		d.cleanup(acronym)
	case errors.IsPermanent(err):
		slog.Warn("Ontology download failed permanently", "acronym", acronym, "error", err)
		d.stats.AddError(acronym, err)
		d.cleanup(acronym)
	default:
		slog.Warn("Ontology download failed, scheduling background retries",
			"acronym", acronym, "error", err)
		d.stats.AddError(acronym, err)
		d.retrier.Submit(ctx, acronym, err)
	}
	return err
}

// syncResource fetches all artifacts for one ontology. Each artifact that
// already exists non-empty is skipped, so the function is safe to call again
// after a partial failure.
func (d *Downloader) syncResource(ctx context.Context, acronym string) error {
	meta, ok := d.metas[acronym]
	if !ok {
		return errors.WrapPermanent(errors.ErrNotFound, "download", "syncResource",
			fmt.Sprintf("resolve catalog entry for %s", acronym))
	}

	if err := d.writeMetadata(meta); err != nil {
		return err
	}
	sub, err := d.writeSubmission(ctx, meta)
	if err != nil {
		return err
	}
	d.writeAuxiliary(ctx, meta)

	if d.ontologyFileDone(acronym) {
		return nil
	}
	if err := d.downloadOntologyFile(ctx, meta, languageOf(sub)); err != nil {
		return err
	}
	d.stats.AddDownloaded(acronym)
	return nil
}

func (d *Downloader) writeCatalog(metas []*bioportal.OntologyMeta) error {
	data, err := json.Marshal(metas)
	if err != nil {
		return errors.WrapPermanent(err, "download", "writeCatalog", "marshal catalog")
	}
	if err := fileio.WriteFile(d.info.Path(OntologyListFile), data); err != nil {
		return errors.Wrap(err, "download", "writeCatalog", "write catalog")
	}
	return nil
}

func (d *Downloader) writeMetadata(meta *bioportal.OntologyMeta) error {
	name := meta.Acronym + ".meta.json.gz"
	if d.info.Done(name) {
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return errors.WrapPermanent(err, "download", "writeMetadata", "marshal metadata")
	}
	if err := fileio.WriteFile(d.info.Path(name), data); err != nil {
		return errors.Wrap(err, "download", "writeMetadata", "write metadata")
	}
	return nil
}

// writeSubmission fetches and persists the latest submission. A missing
// submission is valid; the resolved record is nil then.
func (d *Downloader) writeSubmission(ctx context.Context, meta *bioportal.OntologyMeta) (*bioportal.Submission, error) {
	name := meta.Acronym + ".sub.json.gz"
	if d.info.Done(name) {
		data, err := fileio.ReadFile(d.info.Path(name))
		if err != nil {
			return nil, errors.Wrap(err, "download", "writeSubmission", "read stored submission")
		}
		var sub bioportal.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, errors.WrapPermanent(err, "download", "writeSubmission", "unmarshal stored submission")
		}
		return &sub, nil
	}

	sub, raw, err := d.client.LatestSubmission(ctx, meta.Acronym)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			slog.Warn("Ontology has no latest submission", "acronym", meta.Acronym)
			return nil, nil
		}
		return nil, err
	}
	if err := fileio.WriteFile(d.info.Path(name), raw); err != nil {
		return nil, errors.Wrap(err, "download", "writeSubmission", "write submission")
	}
	return sub, nil
}

// writeAuxiliary persists the submissions, projects and analytics artifacts.
// These are supplementary; failures are logged and do not fail the resource.
func (d *Downloader) writeAuxiliary(ctx context.Context, meta *bioportal.OntologyMeta) {
	endpoints := []struct {
		suffix string
		url    string
	}{
		{".subs.json.gz", linkOr(meta, func(l *bioportal.OntologyLinks) string { return l.Submissions }, "/submissions")},
		{".pro.json.gz", linkOr(meta, func(l *bioportal.OntologyLinks) string { return l.Projects }, "/projects")},
		{".ana.json.gz", linkOr(meta, func(l *bioportal.OntologyLinks) string { return l.Analytics }, "/analytics")},
	}
	for _, ep := range endpoints {
		name := meta.Acronym + ep.suffix
		if d.info.Done(name) {
			continue
		}
		data, err := d.client.Get(ctx, ep.url)
		if err != nil {
			slog.Warn("Auxiliary artifact retrieval failed",
				"acronym", meta.Acronym, "artifact", name, "error", err)
			continue
		}
		if err := fileio.WriteFile(d.info.Path(name), data); err != nil {
			slog.Warn("Auxiliary artifact persistence failed",
				"acronym", meta.Acronym, "artifact", name, "error", err)
		}
	}
}

// downloadOntologyFile streams the ontology source into the data dir. Zip
// payloads are expanded member-by-member; everything else is stored as a
// single gzip file named by acronym and ontology language.
func (d *Downloader) downloadOntologyFile(ctx context.Context, meta *bioportal.OntologyMeta, language string) error {
	url := linkOr(meta, func(l *bioportal.OntologyLinks) string { return l.Download }, "/download")
	stream, filename, err := d.client.GetStream(ctx, url)
	if err != nil {
		return err
	}
	defer stream.Close()

	if strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return d.expandZip(meta.Acronym, language, filename, stream)
	}

	target := d.data.Path(meta.Acronym + "." + language + ".gz")
	af, err := fileio.NewAtomicFile(target)
	if err != nil {
		return errors.Wrap(err, "download", "downloadOntologyFile", "create ontology file")
	}
	defer af.Close()
	if _, err := io.Copy(af, stream); err != nil {
		return errors.Wrap(err, "download", "downloadOntologyFile", "copy ontology file")
	}
	if err := af.Commit(); err != nil {
		return errors.Wrap(err, "download", "downloadOntologyFile", "commit ontology file")
	}
	slog.Info("Ontology file downloaded", "acronym", meta.Acronym, "file", target)
	return nil
}

// expandZip spools the archive to a temp file and expands it. Single-member
// archives collapse to a plain ontology file; otherwise every member lands
// gzip-compressed in a per-ontology directory holding a marker with the
// original download filename.
func (d *Downloader) expandZip(acronym, language, filename string, stream io.Reader) error {
	tmp, err := os.CreateTemp(d.data.Root(), acronym+"-*.zip")
	if err != nil {
		return errors.Wrap(err, "download", "expandZip", "spool archive")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, stream); err != nil {
		return errors.Wrap(err, "download", "expandZip", "copy archive")
	}

	archive, err := zip.OpenReader(tmp.Name())
	if err != nil {
		return errors.WrapPermanent(err, "download", "expandZip", "open archive")
	}
	defer archive.Close()

	var members []*zip.File
	for _, member := range archive.File {
		if !member.FileInfo().IsDir() {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		return errors.WrapPermanent(errors.ErrFileNotAvailable, "download", "expandZip", "find archive members")
	}

	if len(members) == 1 {
		target := d.data.Path(acronym + "." + language + ".gz")
		if err := writeZipMember(members[0], target); err != nil {
			return err
		}
		slog.Info("Ontology archive collapsed to single file", "acronym", acronym, "file", target)
		return nil
	}

	dir := d.data.Path(acronym)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "download", "expandZip", "create archive dir")
	}
	for _, member := range members {
		target := filepath.Join(dir, filepath.Base(member.Name)+".gz")
		if err := writeZipMember(member, target); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, FilenameMarker), []byte(filename), 0o644); err != nil {
		return errors.Wrap(err, "download", "expandZip", "write filename marker")
	}
	slog.Info("Ontology archive expanded", "acronym", acronym, "dir", dir, "members", len(members))
	return nil
}

func writeZipMember(member *zip.File, target string) error {
	in, err := member.Open()
	if err != nil {
		return errors.WrapPermanent(err, "download", "writeZipMember", "open archive member")
	}
	defer in.Close()

	af, err := fileio.NewAtomicFile(target)
	if err != nil {
		return errors.Wrap(err, "download", "writeZipMember", "create member file")
	}
	defer af.Close()
	if _, err := io.Copy(af, in); err != nil {
		return errors.Wrap(err, "download", "writeZipMember", "copy archive member")
	}
	if err := af.Commit(); err != nil {
		return errors.Wrap(err, "download", "writeZipMember", "commit member file")
	}
	return nil
}

// ontologyFileDone reports whether the ontology source artifact exists, as a
// per-ontology directory or as a single data file.
func (d *Downloader) ontologyFileDone(acronym string) bool {
	if d.data.Done(acronym) {
		return true
	}
	for _, name := range d.dataArtifacts(acronym) {
		if d.data.Done(name) {
			return true
		}
	}
	return false
}

// dataArtifacts lists the names under the data dir belonging to an ontology.
// Temporary files left behind by an interrupted atomic write are not
// artifacts and must not pass for a completed checkpoint.
func (d *Downloader) dataArtifacts(acronym string) []string {
	entries, err := os.ReadDir(d.data.Root())
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if entry.Name() == acronym || strings.HasPrefix(entry.Name(), acronym+".") {
			names = append(names, entry.Name())
		}
	}
	return names
}

// cleanup removes the ontology's data artifacts, including any temporary
// files an interrupted write left behind, so a later run starts clean.
// Metadata artifacts in the info dir are kept.
func (d *Downloader) cleanup(acronym string) {
	names := d.dataArtifacts(acronym)
	if entries, err := os.ReadDir(d.data.Root()); err == nil {
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), ".tmp") && strings.HasPrefix(entry.Name(), acronym+".") {
				names = append(names, entry.Name())
			}
		}
	}
	if len(names) > 0 {
		d.data.Clear(names...)
	}
}

func languageOf(sub *bioportal.Submission) string {
	if sub == nil || sub.HasOntologyLanguage == "" {
		return defaultLanguage
	}
	return strings.ToLower(sub.HasOntologyLanguage)
}

// linkOr resolves an advertised endpoint link, falling back to a path below
// the ontology's API URI.
func linkOr(meta *bioportal.OntologyMeta, pick func(*bioportal.OntologyLinks) string, fallback string) string {
	if meta.Links != nil {
		if url := pick(meta.Links); url != "" {
			return url
		}
	}
	return meta.APIURL() + fallback
}
