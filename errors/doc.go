// Package errors defines the retrieval error taxonomy shared by the
// BioPortal client and the download orchestrators.
//
// # Taxonomy
//
// Five conditions cover every remote retrieval outcome:
//
//   - ErrNotFound: the resource is absent server-side (HTTP 400/404).
//     Permanent; the resource is skipped and its partial files removed.
//   - ErrAccessDenied: the server refused access (HTTP 403). Permanent and
//     recorded distinctly from NotFound for reporting.
//   - ErrDownload: a transient network or server fault. Retried with backoff
//     inline, then again on the background tier with long sleeps.
//   - ErrFileNotAvailable: the resource exists but has no downloadable
//     artifact yet. Permanent, reported outside the error counts.
//   - ErrParse: a malformed response payload. Permanent for the attempt,
//     logged with an excerpt around the failure offset.
//
// # Classification
//
// IsRetryable and IsPermanent drive the retry decision at every tier. Errors
// of unknown provenance classify as transient so the long-horizon background
// retrier gets a chance to recover them; permanent classification always wins
// when both could apply.
package errors
