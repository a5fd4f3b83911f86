// Package builder turns processed system data into a persisted
// knowledge graph. Two strategies exist: an AI-backed builder that asks
// a model for entities and relationships, and a deterministic rule-based
// builder that works from parsed structured data.
package builder

import (
	"context"

	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// GraphBuilder creates a knowledge graph for one system from its
// processed data.
type GraphBuilder interface {
	// CreateKnowledgeGraph extracts and persists the graph for one
	// system. It returns false with a nil error when there is nothing to
	// extract or when the external extraction call fails (the cause is
	// logged); errors are reserved for cancellation and persistence
	// failures.
	CreateKnowledgeGraph(ctx context.Context, systemID string, processed *textproc.Result) (bool, error)

	// SupportedDomains lists the data domains the builder handles.
	SupportedDomains() []string

	// Close releases builder-owned resources. Safe to call twice. The
	// shared graph store is owned by the caller and stays open.
	Close(ctx context.Context) error
}

// Extractor produces a graph document from consolidated analysis
// context, without persisting it. Separating extraction from persistence
// lets tests and alternative sinks reuse a strategy.
type Extractor interface {
	Extract(ctx context.Context, systemID string, analysisContext string) (*common.GraphDocument, error)
}
