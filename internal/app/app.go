// Package app wires configuration into a runnable pipeline. All three
// entry points share this assembly so the wiring semantics stay in one
// place.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/opsgraph/opsgraph/internal/config"
	"github.com/opsgraph/opsgraph/pkg/ai"
	aiollama "github.com/opsgraph/opsgraph/pkg/ai/ollama"
	aiopenai "github.com/opsgraph/opsgraph/pkg/ai/openai"
	"github.com/opsgraph/opsgraph/pkg/builder"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/pipeline"
	"github.com/opsgraph/opsgraph/pkg/source"
	"github.com/opsgraph/opsgraph/pkg/store"
	storeneo4j "github.com/opsgraph/opsgraph/pkg/store/neo4j"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// Components holds the wired pipeline and the resources it owns.
type Components struct {
	Adapter source.Adapter
	Store   store.GraphStore
	Builder builder.GraphBuilder
	Loader  *pipeline.Loader
}

// Build assembles the pipeline from configuration: data source adapter,
// graph store, extraction strategy, and orchestrator. sourceName selects
// one of the configured data sources; empty picks the alphabetically
// first.
func Build(ctx context.Context, cfg *config.Config, sourceName string) (*Components, error) {
	adapter, err := BuildAdapter(ctx, cfg, sourceName)
	if err != nil {
		return nil, err
	}

	graphStore, err := storeneo4j.NewStore(ctx, storeneo4j.NewStoreParams{
		URI:                cfg.GraphStore.URI,
		Username:           cfg.GraphStore.Username,
		Password:           cfg.GraphStore.Password,
		Database:           cfg.GraphStore.Database,
		AutoCreateDatabase: cfg.GraphStore.AutoCreateDatabase,
		ClearOnStartup:     cfg.GraphStore.ClearOnStartup,
		BackupBeforeClear:  cfg.GraphStore.BackupBeforeClear,
	})
	if err != nil {
		return nil, err
	}
	if err := graphStore.EnsureSchema(ctx); err != nil {
		graphStore.Close(ctx)
		return nil, err
	}

	components := &Components{Adapter: adapter, Store: graphStore}

	if cfg.Pipeline.PhaseEnabled("graph_extraction") {
		graphBuilder, err := buildGraphBuilder(cfg, graphStore)
		if err != nil {
			graphStore.Close(ctx)
			return nil, err
		}
		components.Builder = graphBuilder
	} else {
		logger.Warn("Graph extraction phase is disabled; loads will fail")
	}

	var processor *textproc.Processor
	if cfg.Pipeline.PhaseEnabled("text_processing") {
		processor, err = textproc.NewProcessor(textproc.NewProcessorParams{
			MaxChunkSize:        cfg.TextProcessing.Chunking.MaxChunkSize,
			ChunkOverlap:        cfg.TextProcessing.Chunking.ChunkOverlap,
			Separators:          cfg.TextProcessing.Chunking.Separators,
			RemoveANSICodes:     cfg.TextProcessing.Cleaning.RemoveANSICodes,
			NormalizeWhitespace: cfg.TextProcessing.Cleaning.NormalizeWhitespace,
			RemoveDebugLogs:     cfg.TextProcessing.Cleaning.RemoveDebugLogs,
			LogPatterns:         cfg.TextProcessing.Parsing.LogPatterns,
		})
		if err != nil {
			components.Close(ctx)
			return nil, err
		}
	} else {
		logger.Warn("Text processing phase is disabled; raw content passes through")
	}

	loader, err := pipeline.NewLoader(pipeline.NewLoaderParams{
		Source:      adapter,
		Processor:   processor,
		Builder:     components.Builder,
		Concurrency: cfg.Pipeline.Concurrency,
	})
	if err != nil {
		components.Close(ctx)
		return nil, err
	}
	components.Loader = loader

	return components, nil
}

// Close releases the wired resources in reverse dependency order.
func (c *Components) Close(ctx context.Context) {
	if c.Builder != nil {
		if err := c.Builder.Close(ctx); err != nil {
			logger.Error("Failed to close builder", "err", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(ctx); err != nil {
			logger.Error("Failed to close graph store", "err", err)
		}
	}
}

// BuildAdapter constructs the data source adapter named by sourceName;
// empty picks the alphabetically first configured source.
func BuildAdapter(ctx context.Context, cfg *config.Config, sourceName string) (source.Adapter, error) {
	if sourceName == "" {
		names := make([]string, 0, len(cfg.DataSources))
		for name := range cfg.DataSources {
			names = append(names, name)
		}
		sort.Strings(names)
		sourceName = names[0]
	}

	sourceCfg, ok := cfg.DataSources[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q", sourceName)
	}

	switch sourceCfg.Type {
	case "filesystem":
		return source.NewFilesystemAdapter(source.NewFilesystemAdapterParams{
			BasePath:     sourceCfg.BasePath,
			FilePatterns: sourceCfg.FilePatterns,
		})
	case "s3":
		client, err := source.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		return source.NewS3Adapter(source.NewS3AdapterParams{
			Client:       client,
			Bucket:       sourceCfg.Bucket,
			Prefix:       sourceCfg.Prefix,
			FilePatterns: sourceCfg.FilePatterns,
		})
	default:
		return nil, fmt.Errorf("unsupported data source type %q", sourceCfg.Type)
	}
}

func buildGraphBuilder(cfg *config.Config, graphStore store.GraphStore) (builder.GraphBuilder, error) {
	switch cfg.Extraction.Builder {
	case "rules":
		rules := make([]builder.Rule, 0, len(cfg.Extraction.Rules))
		for _, rule := range cfg.Extraction.Rules {
			rules = append(rules, builder.Rule{
				Name:         rule.Name,
				Pattern:      rule.Pattern,
				Label:        rule.Label,
				Relationship: rule.Relationship,
			})
		}
		return builder.NewRuleBuilder(builder.NewRuleBuilderParams{
			Rules: rules,
			Store: graphStore,
		})
	case "ai":
		client, err := buildAIClient(cfg)
		if err != nil {
			return nil, err
		}
		extractor, err := builder.NewAIExtractor(builder.NewAIExtractorParams{
			Client:     client,
			Model:      cfg.Extraction.Model,
			MaxRetries: cfg.Extraction.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return builder.NewAIBuilder(builder.NewAIBuilderParams{
			Extractor: extractor,
			Store:     graphStore,
			Timeout:   time.Duration(cfg.Extraction.Timeout),
		})
	default:
		return nil, fmt.Errorf("unsupported builder %q", cfg.Extraction.Builder)
	}
}

func buildAIClient(cfg *config.Config) (ai.GraphAIClient, error) {
	switch cfg.Extraction.Adapter {
	case "ollama":
		return aiollama.NewGraphOllamaClient(aiollama.NewGraphOllamaClientParams{
			ExtractionModel:       cfg.Extraction.Model,
			BaseURL:               cfg.Extraction.BaseURL,
			APIKey:                cfg.Extraction.APIKey,
			MaxConcurrentRequests: int64(cfg.Pipeline.Concurrency),
		})
	default:
		return aiopenai.NewGraphOpenAIClient(aiopenai.NewGraphOpenAIClientParams{
			ExtractionModel: cfg.Extraction.Model,
			BaseURL:         cfg.Extraction.BaseURL,
			APIKey:          cfg.Extraction.APIKey,
		}), nil
	}
}
