package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"

	"github.com/opsgraph/opsgraph/pkg/ai"
)

// GenerateCompletion sends a single-turn prompt and returns assistant
// text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	req, err := c.buildChatRequest(prompt, options, nil)
	if err != nil {
		return "", err
	}

	final, err := c.chat(ctx, req)
	if err != nil {
		return "", err
	}
	return final.Message.Content, nil
}

// GenerateCompletionWithFormat enforces a JSON schema derived from out's
// type and unmarshals the response into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	req, err := c.buildChatRequest(prompt, options, json.RawMessage(formatBytes))
	if err != nil {
		return err
	}

	final, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(final.Message.Content, out)
}

func (c *GraphOllamaClient) buildChatRequest(
	prompt string,
	options ai.GenerateOptions,
	format json.RawMessage,
) (*api.ChatRequest, error) {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if format != nil {
		req.Format = format
	}

	// Ollama's default context window truncates large analysis prompts,
	// so widen num_ctx when the prompt does not fit.
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}
	tokens := 200
	for _, msg := range msgs {
		tokens += len(enc.Encode(msg.Content, nil, nil))
	}
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}

	return req, nil
}

func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return &final, nil
}
