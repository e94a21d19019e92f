package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

// LangChainClient adapts langchaingo models to the neutral Client
// interface, with a request timeout and fibonacci-backoff retry for
// transient transport failures.
type LangChainClient struct {
	model      llms.Model
	modelID    string
	timeout    time.Duration
	maxRetries uint64
}

// NewClient builds a client for the configured provider.
func NewClient(ctx context.Context, cfg *config.LLMConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is required")
	}
	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s model: %w", cfg.Provider, err)
	}
	return &LangChainClient{
		model:      model,
		modelID:    cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: uint64(cfg.MaxRetries),
	}, nil
}

func newModel(ctx context.Context, cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		return anthropic.New(anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.APIKey))
	case "google":
		return googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

func (c *LangChainClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	opts := []llms.CallOption{}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.TopP > 0 {
		opts = append(opts, llms.WithTopP(req.TopP))
	}
	if len(req.StopSequences) > 0 {
		opts = append(opts, llms.WithStopWords(req.StopSequences))
	}
	if req.ModelID != "" {
		opts = append(opts, llms.WithModel(req.ModelID))
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}
	var out *Response
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		resp, err := c.model.GenerateContent(callCtx, messages, opts...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.FromContext(ctx).Warn("LLM request failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		if len(resp.Choices) == 0 {
			return retry.RetryableError(fmt.Errorf("empty LLM response"))
		}
		choice := resp.Choices[0]
		out = &Response{
			Content:    choice.Content,
			ModelID:    c.resolveModelID(req),
			StopReason: choice.StopReason,
			Usage:      usageFrom(choice.GenerationInfo),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm generate: %w", err)
	}
	return out, nil
}

func (c *LangChainClient) resolveModelID(req *Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return c.modelID
}

func usageFrom(info map[string]any) Usage {
	u := Usage{}
	for key, target := range map[string]*int{
		"PromptTokens":     &u.InputTokens,
		"InputTokens":      &u.InputTokens,
		"CompletionTokens": &u.OutputTokens,
		"OutputTokens":     &u.OutputTokens,
	} {
		if v, ok := info[key]; ok {
			if n, ok := toInt(v); ok {
				*target = n
			}
		}
	}
	return u
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}
