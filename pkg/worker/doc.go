// Package worker provides a generic, thread-safe worker pool sized for
// per-resource batch tasks.
//
// # Overview
//
// Each download or extraction run fans one task per ontology onto a pool of
// fixed width. Tasks are embarrassingly parallel: no task depends on another
// task's result, and completion order carries no meaning. Concurrency comes
// purely from pool width; tasks block their worker on network and file I/O.
//
// Two submit disciplines exist:
//
//   - Submit blocks until the item is queued. Batch producers use this so a
//     run enqueues its entire work list under backpressure from slow workers.
//   - TrySubmit never blocks and surfaces ErrQueueFull, for callers that
//     prefer dropping over waiting.
//
// Close marks the end of the batch and drains the queue with a timeout, which
// is the natural shutdown for a finite work list (there is no mid-run
// abort-all primitive; cancellation of the surrounding context stops workers
// between items).
//
// # Observability
//
// Statistics are always tracked with atomic counters. Prometheus metrics are
// opt-in via WithMetrics, registering queue depth, throughput counters and a
// processing-duration histogram with buckets scaled for download tasks that
// can run for minutes.
package worker
