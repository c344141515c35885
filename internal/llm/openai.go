package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openAIProvider implements Provider with the chat completions API.
type openAIProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func newOpenAIProvider(apiKey, model, baseURL string, timeout time.Duration) *openAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIProvider{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (o *openAIProvider) Name() string {
	return "openai/" + o.model
}

func (o *openAIProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai API")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
