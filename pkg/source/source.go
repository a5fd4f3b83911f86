// Package source provides adapters for reading raw system files from
// different backing stores.
package source

import (
	"context"
	"errors"
	"strings"
)

// ErrSystemNotFound is returned by ReadSystemFiles when the requested
// system id has no corresponding storage location.
var ErrSystemNotFound = errors.New("system not found")

// errorMarkerPrefix flags a file entry whose content could not be read.
// One unreadable file must not block the rest of a system's files, so the
// failure is recorded inline instead of aborting the read.
const errorMarkerPrefix = "Error:"

// ErrorMarker formats an inline error value for an unreadable file.
func ErrorMarker(err error) string {
	return errorMarkerPrefix + " " + err.Error()
}

// IsErrorMarker reports whether a file content value is an inline error
// marker rather than real content.
func IsErrorMarker(content string) bool {
	return strings.HasPrefix(content, errorMarkerPrefix)
}

// Adapter reads raw file content for named systems from a backing store.
type Adapter interface {
	// ListAvailableSystems enumerates all recognized systems. An empty
	// store yields an empty slice, never an error.
	ListAvailableSystems(ctx context.Context) ([]string, error)

	// ReadSystemFiles returns a mapping from relative file path to text
	// content for one system. It fails with ErrSystemNotFound when the
	// system id has no storage location. Files that exist but cannot be
	// read yield an inline error marker value (see IsErrorMarker).
	ReadSystemFiles(ctx context.Context, systemID string) (map[string]string, error)
}
