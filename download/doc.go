// Package download syncs the remote ontology catalog into a local layout of
// metadata and source-file artifacts.
//
// Every artifact written by a run is also its checkpoint: a non-empty file
// or directory is treated as done and skipped on the next run, so an
// interrupted sync resumes where it stopped. Resources are processed by a
// worker pool; a failure in one resource never affects the others.
//
// Failures are routed by class. Access denials and missing files land in
// their stats buckets and the resource's partial data is removed. Transient
// failures are handed to the background Retrier, which gives each resource a
// bounded number of widely spaced attempts after the inline retries of the
// HTTP client were exhausted. The run's Stats render the final report.
package download
