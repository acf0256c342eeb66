// Package bioportaltools synchronizes ontologies from a BioPortal-style
// REST API and extracts concept class records from the downloaded
// artifacts.
//
// # Tasks
//
// The module drives three batch tasks, exposed through cmd/bioportaltools:
//
//   - download: fetch the ontology catalog, per-ontology metadata
//     (submission, submission history, projects, analytics) and the
//     ontology source files themselves. Archive downloads are expanded,
//     everything else is stored gzipped.
//   - mappings: walk the paged concept mapping collections of the
//     locally downloaded ontologies and persist one mapping artifact
//     per ontology.
//   - extract: load each downloaded ontology, resolve names, synonyms,
//     definitions, parents and the obsolete flag through per-ontology
//     property cascades and write one concept class record per line.
//
// # Checkpointing
//
// Every task treats its own output artifacts as checkpoints: a
// non-empty artifact means the resource is done and is skipped on
// rerun. Interrupted runs therefore resume by deleting nothing and
// re-fetching only what is missing. Partial artifacts of permanently
// failed resources are removed so they cannot masquerade as
// checkpoints.
//
// # Failure handling
//
// Remote failures are classified once, at the HTTP client, into
// permanent conditions (missing resources, denied access, no
// downloadable file) and transient ones. Transient failures pass
// through two retry tiers: an inline bounded backoff inside the
// client, and a background retrier that re-attempts whole resources
// on a long interval while the rest of the run proceeds. One broken
// ontology never stops the batch; the final report accounts for every
// resource.
//
// # Packages
//
//   - bioportal: REST client, catalog listing, collection paging
//   - download: ontology sync task, run statistics, background retrier
//   - mappings: mapping download task
//   - ontology: graph abstraction, property cascades, OBO loader
//   - extract: concept class extraction task
//   - config: file configuration with schema validation
//   - checkpoint: artifact-directory bookkeeping
//   - errors: error classification and wrapping
//   - pkg/retry: bounded backoff
//   - pkg/worker: generic worker pool
//   - pkg/fileio: gzip-transparent file IO, atomic writes
package bioportaltools
