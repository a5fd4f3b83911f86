// Package pipeline orchestrates the load of raw system data through text
// processing and graph extraction into the persistence sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsgraph/opsgraph/pkg/builder"
	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/source"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// ErrExtractionUnavailable is returned when a load is requested while
// the graph extraction phase is disabled or has no builder wired. It is
// deliberately distinct from source.ErrSystemNotFound so callers can
// tell a missing system from a missing capability.
var ErrExtractionUnavailable = errors.New("graph extraction unavailable")

// ExtractionError reports that extraction ran for a system but produced
// nothing, either because the system had no usable content or because
// the external extraction call failed.
type ExtractionError struct {
	SystemID string
}

func (e *ExtractionError) Error() string {
	return "graph extraction produced no result for system " + e.SystemID
}

// Status classifies the outcome of a system load.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of loading one system.
type Result struct {
	SystemID       string
	Status         Status
	FilesProcessed int
	FilesFailed    int
	ChunksCreated  int
	Summary        *common.SystemEntity
	Err            error
	Duration       time.Duration
}

// BatchResult aggregates the outcomes of a full load.
type BatchResult struct {
	Results   []*Result
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Loader drives the load pipeline. Phase gating happens through wiring:
// a nil processor disables text processing (raw content passes through);
// a nil builder makes every load fail with ErrExtractionUnavailable.
type Loader struct {
	source      source.Adapter
	processor   *textproc.Processor
	builder     builder.GraphBuilder
	concurrency int
}

// NewLoaderParams configures a Loader.
type NewLoaderParams struct {
	Source      source.Adapter
	Processor   *textproc.Processor
	Builder     builder.GraphBuilder
	Concurrency int
}

// NewLoader creates a Loader. The data source adapter is required;
// processor and builder are optional phase hooks.
func NewLoader(params NewLoaderParams) (*Loader, error) {
	if params.Source == nil {
		return nil, fmt.Errorf("data source adapter is required")
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Loader{
		source:      params.Source,
		processor:   params.Processor,
		builder:     params.Builder,
		concurrency: concurrency,
	}, nil
}

// LoadSystemData loads one system end to end: read, process, extract,
// and synthesize the summary entity. The returned Result always carries
// the outcome; the error mirrors Result.Err for callers that branch on
// error kinds.
func (l *Loader) LoadSystemData(ctx context.Context, systemID string) (*Result, error) {
	start := time.Now()
	result := &Result{SystemID: systemID, Status: StatusFailed}
	defer func() { result.Duration = time.Since(start) }()

	fail := func(err error) (*Result, error) {
		result.Err = err
		return result, err
	}

	files, err := l.source.ReadSystemFiles(ctx, systemID)
	if err != nil {
		return fail(fmt.Errorf("failed to read system %s: %w", systemID, err))
	}

	processed := l.process(systemID, files)
	result.FilesProcessed = len(processed.Files)
	result.FilesFailed = len(processed.FailedFiles())
	result.ChunksCreated = processed.TotalChunks()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if l.builder == nil {
		return fail(fmt.Errorf("cannot load system %s: %w", systemID, ErrExtractionUnavailable))
	}

	ok, err := l.builder.CreateKnowledgeGraph(ctx, systemID, processed)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return fail(&ExtractionError{SystemID: systemID})
	}

	result.Status = StatusSuccess
	result.Summary = processed.SystemEntity()

	logger.Info("System loaded",
		"system_id", systemID,
		"files", result.FilesProcessed,
		"chunks", result.ChunksCreated,
		"duration", result.Duration,
	)
	return result, nil
}

// process runs the text processing phase, or passes raw content through
// when the phase is disabled.
func (l *Loader) process(systemID string, files map[string]string) *textproc.Result {
	if l.processor != nil {
		return l.processor.ProcessFiles(systemID, files)
	}
	return passthroughResult(systemID, files)
}

// passthroughResult wraps raw file content as single-chunk processed
// files so downstream phases see the same shape with processing off.
func passthroughResult(systemID string, files map[string]string) *textproc.Result {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	result := &textproc.Result{SystemID: systemID}
	for _, path := range paths {
		raw := files[path]
		if raw == "" {
			continue
		}
		fileType := textproc.DetectFileType(path)
		if source.IsErrorMarker(raw) {
			result.Files = append(result.Files, &textproc.ProcessedFile{
				Path: path,
				Type: fileType,
				Err:  raw,
			})
			continue
		}
		result.Files = append(result.Files, &textproc.ProcessedFile{
			Path:    path,
			Type:    fileType,
			Content: raw,
			Chunks:  []string{raw},
			Metadata: textproc.FileMetadata{
				OriginalSize: len(raw),
				CleanedSize:  len(raw),
				ChunkCount:   1,
			},
		})
	}
	return result
}

// LoadAllSystems loads every system the adapter lists through a bounded
// worker pool. Failures are isolated per system; only context
// cancellation stops the batch early.
func (l *Loader) LoadAllSystems(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	systems, err := l.source.ListAvailableSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list systems: %w", err)
	}
	if len(systems) == 0 {
		logger.Info("No systems found in data source")
		return &BatchResult{Duration: time.Since(start)}, nil
	}

	logger.Info("Loading systems", "count", len(systems), "concurrency", l.concurrency)

	var mu sync.Mutex
	results := make([]*Result, 0, len(systems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, systemID := range systems {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				mu.Lock()
				results = append(results, &Result{SystemID: systemID, Status: StatusSkipped, Err: err})
				mu.Unlock()
				return nil
			}

			result, err := l.LoadSystemData(gctx, systemID)
			if err != nil {
				logger.Error("System load failed", "system_id", systemID, "err", err)
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			// Cancellation is the only error worth propagating; any
			// other failure stays isolated to its system.
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	groupErr := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].SystemID < results[j].SystemID })

	batch := &BatchResult{Results: results, Duration: time.Since(start)}
	for _, result := range results {
		switch result.Status {
		case StatusSuccess:
			batch.Succeeded++
		case StatusFailed:
			batch.Failed++
		}
	}

	logger.Info("Batch load finished",
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"duration", batch.Duration,
	)
	return batch, groupErr
}
