package siteconfig

import (
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// Writer persists the unified configuration artifact.
type Writer struct {
	path string
}

// NewWriter returns a writer targeting the configured artifact path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the artifact location.
func (w *Writer) Path() string { return w.path }

// Write replaces the artifact. Readers never observe a partial document:
// the bytes land in a temp file first and a rename swaps it in.
func (w *Writer) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "failed to create artifact directory").
			WithContext("path", w.path).
			Build()
	}

	tempPath := w.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "failed to write unified config").
			WithContext("path", tempPath).
			Build()
	}
	if err := os.Rename(tempPath, w.path); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "failed to publish unified config").
			WithContext("path", w.path).
			Build()
	}
	return nil
}
