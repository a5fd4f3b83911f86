package config

import (
	"testing"
	"time"
)

const sampleConfig = `
data_sources:
  primary_data:
    type: filesystem
    base_path: ./systems
    file_patterns:
      logs:
        - "var/log/*.log"
      release:
        - "etc/redhat-release"
text_processing:
  chunking:
    max_chunk_size: 500
  cleaning:
    normalize_whitespace: false
pipeline:
  concurrency: 4
  phases:
    text_processing:
      enabled: true
    graph_extraction:
      enabled: false
extraction:
  builder: ai
  adapter: openai
  model: gpt-4o-mini
  timeout: 30s
graph_store:
  uri: bolt://localhost:7687
  username: neo4j
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if cfg.TextProcessing.Chunking.MaxChunkSize != 500 {
		t.Fatalf("explicit chunk size not honored: %d", cfg.TextProcessing.Chunking.MaxChunkSize)
	}
	if cfg.TextProcessing.Chunking.ChunkOverlap != 200 {
		t.Fatalf("default overlap not applied: %d", cfg.TextProcessing.Chunking.ChunkOverlap)
	}
	if cfg.TextProcessing.Cleaning.NormalizeWhitespace {
		t.Fatal("explicit false must override the default")
	}
	if !cfg.TextProcessing.Cleaning.RemoveANSICodes {
		t.Fatal("absent cleaning toggle must default to enabled")
	}
	if time.Duration(cfg.Extraction.Timeout) != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Extraction.Timeout)
	}
	if cfg.GraphStore.Database != "neo4j" {
		t.Fatalf("database should default to neo4j, got %q", cfg.GraphStore.Database)
	}
}

func TestPhaseGating(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if !cfg.Pipeline.PhaseEnabled("text_processing") {
		t.Fatal("text_processing should be enabled")
	}
	if cfg.Pipeline.PhaseEnabled("graph_extraction") {
		t.Fatal("graph_extraction should be disabled")
	}
	if !cfg.Pipeline.PhaseEnabled("persistence") {
		t.Fatal("phases absent from the document should be enabled")
	}
}

func TestParseRejectsMissingSections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "no data sources",
			doc: `
extraction:
  builder: ai
graph_store:
  uri: bolt://localhost:7687
  username: neo4j
`,
		},
		{
			name: "unknown source type",
			doc: `
data_sources:
  primary_data:
    type: carrier-pigeon
extraction:
  builder: ai
graph_store:
  uri: bolt://localhost:7687
  username: neo4j
`,
		},
		{
			name: "missing store uri",
			doc: `
data_sources:
  primary_data:
    type: filesystem
    base_path: ./systems
extraction:
  builder: ai
graph_store:
  username: neo4j
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
