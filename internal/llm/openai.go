// Package llm is the chat-completion boundary. The chat orchestrator only
// sees the Client interface; the OpenAI implementation lives here.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lalith-99/parabrain/internal/apperr"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

// Message is one entry of the outbound conversation.
type Message struct {
	Role    models.Role
	Content string
}

// Options overrides the client defaults for a single call. Zero values
// keep the defaults.
type Options struct {
	Model       string
	Temperature *float64
}

type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, messages []Message, opts Options) (string, error)

func (f Func) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAI calls the chat completions endpoint of OpenAI or any API that
// speaks the same protocol (BaseURL).
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
}

// NewOpenAI builds the client.
//
// Why WithMaxRetries(0)?
//   - A chat turn is user-facing. The SDK's default retries could hold a
//     request for a long time on a flaky upstream; we fail fast and let
//     the user resend.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (o *OpenAI) buildParams(messages []Message, opts Options) openai.ChatCompletionNewParams {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}
	temperature := o.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(temperature),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	return params
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	params := o.buildParams(messages, opts)

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Warn("llm call failed",
			zap.String("model", string(params.Model)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", apperr.Upstream("llm completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Upstream("llm completion failed", errors.New("no choices in response"))
	}

	o.logger.Debug("llm call completed",
		zap.String("model", resp.Model),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
