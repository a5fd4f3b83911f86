package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
)

// FilesystemAdapter reads system files from a directory tree. Each
// immediate subdirectory of the base path is one system; files inside it
// are resolved against the configured pattern groups.
type FilesystemAdapter struct {
	basePath string
	patterns map[string][]string
}

// NewFilesystemAdapterParams configures a FilesystemAdapter.
type NewFilesystemAdapterParams struct {
	BasePath     string
	FilePatterns map[string][]string
}

// NewFilesystemAdapter creates a filesystem adapter rooted at the given
// base path. The path must exist; a missing data source directory is a
// construction-time error.
func NewFilesystemAdapter(params NewFilesystemAdapterParams) (*FilesystemAdapter, error) {
	info, err := os.Stat(params.BasePath)
	if err != nil {
		return nil, fmt.Errorf("data source path not found: %s: %w", params.BasePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data source path is not a directory: %s", params.BasePath)
	}

	logger.Info("Filesystem adapter initialized", "base_path", params.BasePath)

	return &FilesystemAdapter{
		basePath: params.BasePath,
		patterns: params.FilePatterns,
	}, nil
}

// ListAvailableSystems returns the names of all system directories under
// the base path, sorted for deterministic processing order.
func (a *FilesystemAdapter) ListAvailableSystems(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		logger.Error("Failed to list systems", "base_path", a.basePath, "err", err)
		return []string{}, nil
	}

	systems := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			systems = append(systems, entry.Name())
		}
	}
	sort.Strings(systems)

	logger.Debug("Found systems", "count", len(systems))
	return systems, nil
}

// ReadSystemFiles reads all files for a system according to the configured
// pattern groups. An unreadable file yields an inline error marker value;
// it never aborts the read of the remaining files.
func (a *FilesystemAdapter) ReadSystemFiles(ctx context.Context, systemID string) (map[string]string, error) {
	systemPath := filepath.Join(a.basePath, systemID)
	if info, err := os.Stat(systemPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSystemNotFound, systemID)
	}

	files := map[string]string{}
	for _, patterns := range a.patterns {
		for _, pattern := range patterns {
			for _, path := range a.findFiles(systemPath, pattern) {
				rel, err := filepath.Rel(systemPath, path)
				if err != nil {
					continue
				}
				rel = filepath.ToSlash(rel)

				raw, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("Failed to read file", "path", path, "err", err)
					files[rel] = ErrorMarker(err)
					continue
				}
				files[rel] = util.SanitizeText(string(raw))
			}
		}
	}

	logger.Debug("Read system files", "system_id", systemID, "count", len(files))
	return files, nil
}

func (a *FilesystemAdapter) findFiles(systemPath, pattern string) []string {
	if strings.Contains(pattern, "*") {
		matches, err := filepath.Glob(filepath.Join(systemPath, filepath.FromSlash(pattern)))
		if err != nil {
			logger.Warn("Pattern matching failed", "pattern", pattern, "err", err)
			return nil
		}
		var files []string
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				files = append(files, m)
			}
		}
		return files
	}

	path := filepath.Join(systemPath, filepath.FromSlash(pattern))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return []string{path}
	}
	return nil
}
