// Package retry implements the inline retry tier of the download pipeline.
//
// Every remote request runs through Do with a bounded attempt count and a
// multiplicative backoff (2.5x per attempt against the BioPortal API, mirroring
// the server's observed recovery behavior). Permanent retrieval failures are
// wrapped with NonRetryable by the caller so the loop aborts on the first
// occurrence instead of burning attempts on errors that cannot heal.
//
// The long-horizon background tier (hour-scale waits between attempts) is a
// separate mechanism; see the download package's Retrier.
package retry
