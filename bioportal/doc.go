// Package bioportal implements the retrieval layer against the BioPortal
// REST API: the authenticated HTTP client with typed failure classification
// and inline retry, the catalog and submission endpoints, and the
// cursor-based pagination walker for collection endpoints.
//
// # Failure classification
//
// Every HTTP outcome maps onto the taxonomy of the errors package: statuses
// below 300 succeed, 400 and 404 yield ErrNotFound, 403 yields
// ErrAccessDenied, everything else at or above 300 yields the retryable
// ErrDownload. Socket-level timeouts and resets are retryable. The client
// retries transient failures up to the configured attempt count with a
// 2.5x backoff between attempts and constructs a fresh request per attempt;
// permanent failures are surfaced on the first occurrence.
//
// # Concurrency
//
// A single Client instance is shared by all orchestrator workers. It holds
// no per-call mutable state beyond the request object created fresh for each
// call.
package bioportal
