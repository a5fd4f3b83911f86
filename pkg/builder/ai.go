package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/ai"
	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/store"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

type extractedNode struct {
	Name        string `json:"name"        jsonschema_description:"Short stable name of the entity, reused for every mention"`
	Label       string `json:"label"       jsonschema_description:"Node label from the allowed vocabulary"`
	Description string `json:"description" jsonschema_description:"One sentence describing the entity"`
}

type extractedRelationship struct {
	SourceName  string `json:"source_name"  jsonschema_description:"Name of the source node"`
	SourceLabel string `json:"source_label" jsonschema_description:"Label of the source node"`
	TargetName  string `json:"target_name"  jsonschema_description:"Name of the target node"`
	TargetLabel string `json:"target_label" jsonschema_description:"Label of the target node"`
	Type        string `json:"type"         jsonschema_description:"Relationship type from the allowed vocabulary"`
	Description string `json:"description"  jsonschema_description:"One sentence describing the relationship"`
}

type extractionResponse struct {
	Nodes         []extractedNode         `json:"nodes"         jsonschema_description:"Entities found in the system data"`
	Relationships []extractedRelationship `json:"relationships" jsonschema_description:"Directed relationships between the entities"`
}

// AIExtractor asks a chat model for graph structure using schema-enforced
// output.
type AIExtractor struct {
	client     ai.GraphAIClient
	model      string
	maxRetries int
}

// NewAIExtractorParams configures an AIExtractor.
type NewAIExtractorParams struct {
	Client     ai.GraphAIClient
	Model      string
	MaxRetries int
}

// NewAIExtractor creates a model-backed extractor. The client is
// required.
func NewAIExtractor(params NewAIExtractorParams) (*AIExtractor, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("ai client is required")
	}
	return &AIExtractor{
		client:     params.Client,
		model:      params.Model,
		maxRetries: params.MaxRetries,
	}, nil
}

// Extract sends the analysis context to the model and converts the
// structured response into a graph document. Extraction runs at
// temperature 0 so repeated runs stay comparable.
func (e *AIExtractor) Extract(ctx context.Context, systemID string, analysisContext string) (*common.GraphDocument, error) {
	prompt := analysisContext + "\n\nALLOWED NODE LABELS: " + strings.Join(NodeLabels, ", ") +
		"\nALLOWED RELATIONSHIP TYPES: " + strings.Join(RelationshipTypes, ", ")

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(ai.ExtractionSystemPrompt),
		ai.WithTemperature(0),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	e.client.ResetMetrics()

	var response extractionResponse
	err := util.RetryErrWithContext(ctx, e.maxRetries, func(ctx context.Context) error {
		response = extractionResponse{}
		return e.client.GenerateCompletionWithFormat(
			ctx,
			"knowledge_graph",
			"Entities and relationships extracted from system operational data",
			prompt,
			&response,
			opts...,
		)
	})
	if err != nil {
		return nil, err
	}

	metrics := e.client.GetMetrics()
	logger.Debug("Extraction model usage",
		"system_id", systemID,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"duration_ms", metrics.DurationMs,
	)

	doc := &common.GraphDocument{SystemID: systemID}
	for _, node := range response.Nodes {
		if node.Name == "" {
			continue
		}
		n := common.Node{
			ID:    gonanoid.Must(),
			Name:  node.Name,
			Label: node.Label,
		}
		if node.Description != "" {
			n.Properties = map[string]any{"description": node.Description}
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, rel := range response.Relationships {
		r := common.Relationship{
			ID:          gonanoid.Must(),
			SourceName:  rel.SourceName,
			SourceLabel: rel.SourceLabel,
			TargetName:  rel.TargetName,
			TargetLabel: rel.TargetLabel,
			Type:        rel.Type,
		}
		if rel.Description != "" {
			r.Properties = map[string]any{"description": rel.Description}
		}
		doc.Relationships = append(doc.Relationships, r)
	}
	return doc, nil
}

// AIBuilder is the model-backed GraphBuilder strategy. It composes an
// Extractor with the shared graph store.
type AIBuilder struct {
	extractor Extractor
	store     store.GraphStore
	timeout   time.Duration

	closeOnce sync.Once
}

// NewAIBuilderParams configures an AIBuilder.
type NewAIBuilderParams struct {
	Extractor Extractor
	Store     store.GraphStore
	Timeout   time.Duration
}

// NewAIBuilder creates the AI strategy. Extractor and store must both be
// present; a missing one is a configuration error surfaced eagerly.
func NewAIBuilder(params NewAIBuilderParams) (*AIBuilder, error) {
	if params.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("graph store is required")
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	logger.Info("AI graph builder initialized", "timeout", timeout)
	return &AIBuilder{
		extractor: params.Extractor,
		store:     params.Store,
		timeout:   timeout,
	}, nil
}

// CreateKnowledgeGraph builds the analysis context, extracts graph
// structure through the model, filters it against the vocabulary, and
// merges it into the store.
func (b *AIBuilder) CreateKnowledgeGraph(ctx context.Context, systemID string, processed *textproc.Result) (bool, error) {
	analysisContext := BuildAnalysisContext(systemID, processed)
	if analysisContext == "" {
		logger.Warn("No content available for extraction", "system_id", systemID)
		return false, nil
	}

	logger.Info("Creating knowledge graph", "system_id", systemID, "context_chars", len(analysisContext))

	extractCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	doc, err := b.extractor.Extract(extractCtx, systemID, analysisContext)
	if err != nil {
		// A canceled parent is the caller's signal to stop; a failed or
		// timed-out model call only fails this system.
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return false, ctx.Err()
		}
		logger.Error("Graph extraction failed", "system_id", systemID, "err", err)
		return false, nil
	}

	doc = FilterGraphDocument(doc)
	if doc.Empty() {
		logger.Warn("No graph structure extracted", "system_id", systemID)
		return false, nil
	}

	counts, err := b.store.MergeGraphDocument(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("failed to persist graph for %s: %w", systemID, err)
	}

	logger.Info("Knowledge graph created",
		"system_id", systemID,
		"nodes", counts.Nodes,
		"relationships", counts.Relationships,
	)
	return true, nil
}

// SupportedDomains reports that the AI strategy handles any domain.
func (b *AIBuilder) SupportedDomains() []string {
	return []string{
		"infrastructure", "applications", "security", "business",
		"documents", "operations", "networking", "databases",
		"monitoring", "compliance", "universal",
	}
}

// Close is a no-op beyond idempotence bookkeeping; the store and AI
// client are owned by the caller.
func (b *AIBuilder) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		logger.Debug("AI graph builder closed")
	})
	return nil
}
