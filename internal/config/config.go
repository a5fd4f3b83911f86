package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/opsgraph/opsgraph/internal/util"
)

// Config is the full typed configuration document for the pipeline. It is
// constructed once at process start and passed into each component; there
// is no ambient global configuration state.
type Config struct {
	Debug          bool                        `yaml:"debug"`
	DataSources    map[string]DataSourceConfig `yaml:"data_sources" validate:"required,min=1,dive"`
	TextProcessing TextProcessingConfig        `yaml:"text_processing"`
	Pipeline       PipelineConfig              `yaml:"pipeline"`
	Extraction     ExtractionConfig            `yaml:"extraction" validate:"required"`
	GraphStore     GraphStoreConfig            `yaml:"graph_store" validate:"required"`
}

// DataSourceConfig describes one backing store of raw system files.
type DataSourceConfig struct {
	Type         string              `yaml:"type" validate:"required,oneof=filesystem s3"`
	BasePath     string              `yaml:"base_path"`
	Bucket       string              `yaml:"bucket"`
	Prefix       string              `yaml:"prefix"`
	FilePatterns map[string][]string `yaml:"file_patterns"`
}

// TextProcessingConfig groups the cleaning, parsing, and chunking settings.
type TextProcessingConfig struct {
	Chunking ChunkingConfig `yaml:"chunking"`
	Cleaning CleaningConfig `yaml:"cleaning"`
	Parsing  ParsingConfig  `yaml:"parsing"`
}

// ChunkingConfig controls how cleaned content is split into bounded chunks.
type ChunkingConfig struct {
	MaxChunkSize int      `yaml:"max_chunk_size" validate:"gte=0"`
	ChunkOverlap int      `yaml:"chunk_overlap" validate:"gte=0"`
	Separators   []string `yaml:"separators"`
}

// CleaningConfig toggles the text cleaning steps. All steps default to
// enabled; set a field to false in the document to switch one off.
type CleaningConfig struct {
	RemoveANSICodes     bool `yaml:"remove_ansi_codes"`
	NormalizeWhitespace bool `yaml:"normalize_whitespace"`
	RemoveDebugLogs     bool `yaml:"remove_debug_logs"`
}

// ParsingConfig carries the named log extraction patterns. Each value is a
// regular expression with named capture groups; the first matching pattern
// per line wins.
type ParsingConfig struct {
	LogPatterns map[string]string `yaml:"log_patterns"`
}

// PipelineConfig controls phase gating and batch concurrency.
type PipelineConfig struct {
	Phases      map[string]PhaseConfig `yaml:"phases"`
	Concurrency int                    `yaml:"concurrency" validate:"gte=0"`
}

// PhaseConfig gates one pipeline phase.
type PhaseConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PhaseEnabled reports whether the named phase is enabled. Phases absent
// from the document are enabled.
func (p PipelineConfig) PhaseEnabled(name string) bool {
	phase, ok := p.Phases[name]
	if !ok {
		return true
	}
	return phase.Enabled
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m", and from integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// ExtractionConfig configures the graph extraction service.
type ExtractionConfig struct {
	Builder    string       `yaml:"builder" validate:"required,oneof=ai rules"`
	Adapter    string       `yaml:"adapter" validate:"omitempty,oneof=openai ollama"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Timeout    Duration     `yaml:"timeout"`
	MaxRetries int          `yaml:"max_retries" validate:"gte=0"`
	Rules      []RuleConfig `yaml:"rules"`

	// APIKey is resolved from the AI_CHAT_KEY environment variable,
	// never from the document.
	APIKey string `yaml:"-"`
}

// RuleConfig is one deterministic extraction rule for the rule-based
// builder: lines of cleaned content matching Pattern become nodes with the
// given label, connected to the system by the given relationship type.
type RuleConfig struct {
	Name         string `yaml:"name" validate:"required"`
	Pattern      string `yaml:"pattern" validate:"required"`
	Label        string `yaml:"label" validate:"required"`
	Relationship string `yaml:"relationship" validate:"required"`
}

// GraphStoreConfig configures the graph persistence sink.
type GraphStoreConfig struct {
	URI                string `yaml:"uri" validate:"required"`
	Username           string `yaml:"username" validate:"required"`
	Database           string `yaml:"database"`
	AutoCreateDatabase bool   `yaml:"auto_create_database"`
	ClearOnStartup     bool   `yaml:"clear_on_startup"`
	BackupBeforeClear  bool   `yaml:"backup_before_clear"`

	// Password is resolved from the GRAPH_STORE_PASSWORD environment
	// variable, never from the document.
	Password string `yaml:"-"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		TextProcessing: TextProcessingConfig{
			Chunking: ChunkingConfig{
				MaxChunkSize: 2000,
				ChunkOverlap: 200,
				Separators:   []string{"\n\n", "\n", " ", ""},
			},
			Cleaning: CleaningConfig{
				RemoveANSICodes:     true,
				NormalizeWhitespace: true,
				RemoveDebugLogs:     true,
			},
		},
		Pipeline: PipelineConfig{
			Concurrency: 1,
		},
		Extraction: ExtractionConfig{
			Builder:    "ai",
			Adapter:    "openai",
			Timeout:    Duration(120 * time.Second),
			MaxRetries: 3,
		},
		GraphStore: GraphStoreConfig{
			Database: "neo4j",
		},
	}
}

// Load reads the YAML configuration document at path, applies defaults,
// resolves secrets from the environment, and validates the result. A
// missing or invalid required section is a load-time error, not a deferred
// warning.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration document over the defaults and
// validates it.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Extraction.APIKey = util.GetEnv("AI_CHAT_KEY")
	cfg.GraphStore.Password = util.GetEnv("GRAPH_STORE_PASSWORD")
	if cfg.GraphStore.Database == "" {
		cfg.GraphStore.Database = "neo4j"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
