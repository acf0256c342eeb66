// Package fileio provides gzip-transparent file access and atomic writes for
// the persisted per-ontology artifacts.
package fileio

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsCompressed reports whether the path denotes a gzip-compressed artifact.
func IsCompressed(path string) bool {
	lc := strings.ToLower(path)
	return strings.HasSuffix(lc, ".gz") || strings.HasSuffix(lc, ".gzip")
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var firstErr error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (wc *writeCloser) Close() error {
	var firstErr error
	for _, c := range wc.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenReader opens path for reading, transparently decompressing gzip
// artifacts based on the file extension.
func OpenReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open gzip reader for %s: %w", path, err)
	}
	return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

// CreateWriter creates path (and its parent directories) for writing,
// transparently gzip-compressing based on the file extension.
func CreateWriter(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	gz := gzip.NewWriter(f)
	// gzip writer must be closed before the file so the trailer is flushed.
	return &writeCloser{Writer: gz, closers: []io.Closer{gz, f}}, nil
}

// ReadFile reads the whole artifact, decompressing when needed.
func ReadFile(path string) ([]byte, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile writes data to path, compressing when the extension calls for it.
func WriteFile(path string, data []byte) error {
	w, err := CreateWriter(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// AtomicFile writes to a temporary sibling file and only moves it to the
// final path on Commit. Close without Commit removes the temporary file, so
// an error or crash mid-write never leaves a partial artifact that a later
// run would mistake for a completed checkpoint.
type AtomicFile struct {
	w         io.WriteCloser
	tmpPath   string
	finalPath string
	committed bool
	closed    bool
}

// NewAtomicFile creates an atomic writer targeting path. Compression follows
// the final path's extension, not the temporary ".tmp" suffix.
func NewAtomicFile(path string) (*AtomicFile, error) {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(tmp), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	var w io.WriteCloser = f
	if IsCompressed(path) {
		gz := gzip.NewWriter(f)
		w = &writeCloser{Writer: gz, closers: []io.Closer{gz, f}}
	}
	return &AtomicFile{w: w, tmpPath: tmp, finalPath: path}, nil
}

// Write implements io.Writer.
func (af *AtomicFile) Write(p []byte) (int, error) {
	return af.w.Write(p)
}

// Commit flushes the temporary file and renames it into place.
func (af *AtomicFile) Commit() error {
	if af.closed {
		return fmt.Errorf("atomic file for %s already closed", af.finalPath)
	}
	af.closed = true
	if err := af.w.Close(); err != nil {
		_ = os.Remove(af.tmpPath)
		return err
	}
	if err := os.Rename(af.tmpPath, af.finalPath); err != nil {
		_ = os.Remove(af.tmpPath)
		return err
	}
	af.committed = true
	return nil
}

// Close aborts the write when Commit has not been called, removing the
// temporary file. Safe to defer alongside Commit.
func (af *AtomicFile) Close() error {
	if af.closed {
		return nil
	}
	af.closed = true
	err := af.w.Close()
	if rmErr := os.Remove(af.tmpPath); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Committed reports whether the file reached its final path.
func (af *AtomicFile) Committed() bool {
	return af.committed
}
