// Package openai implements ai.GraphAIClient against an OpenAI-compatible
// chat completion endpoint.
package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/opsgraph/opsgraph/pkg/ai"
)

// GraphOpenAIClient is an ai.GraphAIClient backed by an OpenAI-compatible
// chat endpoint. Create it with NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	extractionModel string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams configures a GraphOpenAIClient. BaseURL may
// be empty for the default OpenAI endpoint.
type NewGraphOpenAIClientParams struct {
	ExtractionModel string
	BaseURL         string
	APIKey          string
}

// NewGraphOpenAIClient creates a client for the configured chat endpoint.
// With an empty API key the chat client is nil and every call fails.
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	return &GraphOpenAIClient{
		extractionModel: params.ExtractionModel,
		ChatClient:      newOpenaiClient(params.BaseURL, params.APIKey),
	}
}

func newOpenaiClient(baseURL, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since
// the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *GraphOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}
