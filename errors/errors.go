// Package errors provides the error taxonomy for BioPortal resource retrieval.
// Errors are classified into permanent and transient conditions; the retry tiers
// in the download orchestrator only ever act on transient errors.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Class represents the classification of errors for handling purposes.
type Class int

const (
	// ClassTransient represents temporary errors that may be retried.
	ClassTransient Class = iota
	// ClassPermanent represents errors that must not be retried, such as a
	// resource that does not exist server-side.
	ClassPermanent
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Standard error variables for remote retrieval outcomes.
var (
	// ErrNotFound indicates the resource is absent server-side (HTTP 400/404).
	ErrNotFound = errors.New("resource not found")
	// ErrAccessDenied indicates the server refused access (HTTP 403).
	ErrAccessDenied = errors.New("resource access denied")
	// ErrDownload indicates a transient network or server fault.
	ErrDownload = errors.New("resource download failed")
	// ErrFileNotAvailable indicates the resource exists but has no
	// downloadable artifact yet.
	ErrFileNotAvailable = errors.New("no ontology file available for download")
	// ErrParse indicates a malformed response payload.
	ErrParse = errors.New("malformed response payload")
)

// ClassifiedError wraps an error with its classification and the component
// context it originated from.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsRetryable reports whether an error is transient and may be retried.
// Socket-level faults and HTTP statuses outside the permanent set classify
// as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsPermanent(err) {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ClassTransient
	}

	if errors.Is(err, ErrDownload) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Connection resets and similar socket faults surface as plain wrapped
	// errors from the HTTP transport.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection re", "connection refused", "broken pipe", "eof"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsPermanent reports whether an error must not be retried.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ClassPermanent
	}

	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrFileNotAvailable) ||
		errors.Is(err, ErrParse)
}

// Classify returns the error class for an error. Unknown errors default to
// transient so the background tier gets a chance to recover them.
func Classify(err error) Class {
	if IsPermanent(err) {
		return ClassPermanent
	}
	return ClassTransient
}

// Wrap creates a standardized error with context following the pattern
// "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     ClassTransient,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapPermanent wraps an error as permanent with context.
func WrapPermanent(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     ClassPermanent,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// HTTPStatusError carries the HTTP status that produced a retrieval error
// together with a body excerpt for reporting.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP status %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP status %d for %s", e.StatusCode, e.URL)
}

// FromStatus converts an HTTP status code into the matching taxonomy error.
// Statuses below 300 yield nil. 400 and 404 map to ErrNotFound, 403 to
// ErrAccessDenied and everything else to the retryable ErrDownload.
func FromStatus(status int, url, body string) error {
	if status < 300 {
		return nil
	}
	statusErr := &HTTPStatusError{StatusCode: status, URL: url, Body: body}
	switch status {
	case 400, 404:
		return fmt.Errorf("%w: %w", ErrNotFound, statusErr)
	case 403:
		return fmt.Errorf("%w: %w", ErrAccessDenied, statusErr)
	default:
		return fmt.Errorf("%w: %w", ErrDownload, statusErr)
	}
}

// ParseError builds an ErrParse with a best-effort excerpt of the payload
// around the byte offset where decoding failed.
func ParseError(err error, payload []byte, offset int64) error {
	const window = 40
	if offset < 0 || len(payload) == 0 {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	start := max(int(offset)-window, 0)
	end := min(int(offset)+window, len(payload))
	return fmt.Errorf("%w: %w (near %q)", ErrParse, err, string(payload[start:end]))
}
