// Package genai answers free-text health questions from the education menu
// using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// answerTimeout bounds the completion call; USSD gateways drop slow sessions.
	answerTimeout = 8 * time.Second
	// MaxAnswerRunes keeps answers renderable on small screens.
	MaxAnswerRunes = 300
)

const systemPrompt = "You are a health educator for a menstrual and adolescent " +
	"health service delivered over basic phones. Answer in plain language, at most " +
	"three short sentences, no markdown. For anything urgent or clinical, advise " +
	"visiting a clinic. Never give a diagnosis."

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client answers health questions via chat completions.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Answer returns a short, screen-sized answer to a health question.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	slog.Debug("GenAI Answer invoked", "question_len", len(question))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(question),
		},
	})
	if err != nil {
		slog.Error("GenAI Answer completion failed", "error", err)
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if runes := []rune(answer); len(runes) > MaxAnswerRunes {
		answer = string(runes[:MaxAnswerRunes-3]) + "..."
	}
	slog.Debug("GenAI Answer succeeded", "answer_len", len(answer))
	return answer, nil
}
