// Package textproc turns raw system files into cleaned, classified,
// parsed, and chunked content ready for graph extraction.
package textproc

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/source"
)

// rawPrefixLimit bounds how much raw content an error record keeps for
// diagnostics.
const rawPrefixLimit = 1000

// Processor applies the cleaning, classification, parsing, and chunking
// steps to a system's files. It is safe for concurrent use once built.
type Processor struct {
	maxChunkSize int
	chunkOverlap int
	separators   []string

	removeANSI   bool
	removeDebug  bool
	normalizeWS  bool
	logPatterns  []logPattern
	tokenCounter *tokenCounter
}

type logPattern struct {
	name string
	re   *regexp.Regexp
}

// NewProcessorParams configures a Processor.
type NewProcessorParams struct {
	MaxChunkSize int
	ChunkOverlap int
	Separators   []string

	RemoveANSICodes     bool
	NormalizeWhitespace bool
	RemoveDebugLogs     bool

	// LogPatterns maps a pattern name to a regular expression with named
	// capture groups. When empty, a built-in syslog pattern is used.
	LogPatterns map[string]string
}

// NewProcessor builds a Processor. Log patterns are compiled up front; an
// invalid pattern is a construction-time error.
func NewProcessor(params NewProcessorParams) (*Processor, error) {
	separators := params.Separators
	if len(separators) == 0 {
		separators = []string{"\n\n", "\n", " ", ""}
	}

	rawPatterns := params.LogPatterns
	if len(rawPatterns) == 0 {
		rawPatterns = defaultLogPatterns
	}

	names := make([]string, 0, len(rawPatterns))
	for name := range rawPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	patterns := make([]logPattern, 0, len(names))
	for _, name := range names {
		re, err := regexp.Compile(rawPatterns[name])
		if err != nil {
			return nil, fmt.Errorf("invalid log pattern %s: %w", name, err)
		}
		patterns = append(patterns, logPattern{name: name, re: re})
	}

	return &Processor{
		maxChunkSize: params.MaxChunkSize,
		chunkOverlap: params.ChunkOverlap,
		separators:   separators,
		removeANSI:   params.RemoveANSICodes,
		removeDebug:  params.RemoveDebugLogs,
		normalizeWS:  params.NormalizeWhitespace,
		logPatterns:  patterns,
		tokenCounter: newTokenCounter(),
	}, nil
}

// FileMetadata carries the size accounting of one processed file.
type FileMetadata struct {
	OriginalSize int `json:"original_size"`
	CleanedSize  int `json:"cleaned_size"`
	ChunkCount   int `json:"chunk_count"`
	TokenCount   int `json:"token_count"`
}

// ProcessedFile is the processing outcome for one file. Either the
// content fields or the error fields are populated, never both.
type ProcessedFile struct {
	Path     string
	Type     FileType
	Chunks   []string
	Parsed   *ParsedContent
	Metadata FileMetadata

	// Content is the cleaned, normalized text the chunks were cut from.
	Content string

	// Err holds the failure for a file that could not be read or
	// processed; RawPrefix keeps the head of the raw content for
	// diagnostics.
	Err       string
	RawPrefix string
}

// Failed reports whether the file produced an error record instead of
// processed content.
func (f *ProcessedFile) Failed() bool {
	return f.Err != ""
}

// Result collects the processed files of one system.
type Result struct {
	SystemID string
	Files    []*ProcessedFile
}

// ProcessFiles runs the full processing sequence over a system's files.
// Empty files are skipped; files carrying an inline read-error marker
// become error records. One bad file never aborts the rest.
func (p *Processor) ProcessFiles(systemID string, files map[string]string) *Result {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	result := &Result{SystemID: systemID}
	for _, path := range paths {
		raw := files[path]
		if raw == "" {
			logger.Debug("Skipping empty file", "system_id", systemID, "path", path)
			continue
		}

		fileType := DetectFileType(path)
		if source.IsErrorMarker(raw) {
			result.Files = append(result.Files, &ProcessedFile{
				Path: path,
				Type: fileType,
				Err:  raw,
			})
			continue
		}

		processed, err := p.processFile(path, fileType, raw)
		if err != nil {
			logger.Warn("Failed to process file", "system_id", systemID, "path", path, "err", err)
			result.Files = append(result.Files, &ProcessedFile{
				Path:      path,
				Type:      fileType,
				Err:       err.Error(),
				RawPrefix: util.TruncateString(raw, rawPrefixLimit),
			})
			continue
		}
		result.Files = append(result.Files, processed)
	}

	logger.Debug("Processed system files",
		"system_id", systemID,
		"files", len(result.Files),
		"chunks", result.TotalChunks(),
	)
	return result
}

func (p *Processor) processFile(path string, fileType FileType, raw string) (*ProcessedFile, error) {
	// Parsing needs line structure, so it runs on the line-preserving
	// cleaned form; chunking runs on the fully normalized form.
	lines := p.cleanLines(raw)
	parsed, err := p.Parse(fileType, lines)
	if err != nil {
		return nil, err
	}

	content := p.normalize(lines)
	chunks := p.Chunk(content)
	return &ProcessedFile{
		Path:    path,
		Type:    fileType,
		Content: content,
		Chunks:  chunks,
		Parsed:  parsed,
		Metadata: FileMetadata{
			OriginalSize: len(raw),
			CleanedSize:  len(content),
			ChunkCount:   len(chunks),
			TokenCount:   p.tokenCounter.Count(content),
		},
	}, nil
}

// TotalChunks sums the chunk counts across all successfully processed
// files.
func (r *Result) TotalChunks() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Chunks)
	}
	return n
}

// FailedFiles returns the error records of the result.
func (r *Result) FailedFiles() []*ProcessedFile {
	var failed []*ProcessedFile
	for _, f := range r.Files {
		if f.Failed() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Release returns the first parsed release info found, or nil.
func (r *Result) Release() *ReleaseInfo {
	for _, f := range r.Files {
		if f.Parsed != nil && f.Parsed.Release != nil {
			return f.Parsed.Release
		}
	}
	return nil
}

// LogEntries concatenates the parsed log entries of all files in path
// order.
func (r *Result) LogEntries() []LogEntry {
	var entries []LogEntry
	for _, f := range r.Files {
		if f.Parsed != nil {
			entries = append(entries, f.Parsed.LogEntries...)
		}
	}
	return entries
}

// PackageCount sums the parsed package list entries.
func (r *Result) PackageCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Parsed != nil {
			n += len(f.Parsed.Packages)
		}
	}
	return n
}

// ServiceNames lists the systemd unit names found among the files,
// sorted and without the .service suffix.
func (r *Result) ServiceNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, f := range r.Files {
		if f.Type != FileTypeSystemdService {
			continue
		}
		name := serviceUnitName(f.Path)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
