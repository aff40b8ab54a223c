package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"triage_server/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

var ErrNoAPIKey = errors.New("llm: api key not configured")

type ClientConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // OpenAI-compatible endpoint, e.g. Gemini's openai route
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client sends prompts to a chat completion endpoint through a circuit breaker.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	breaker     *resilience.Breaker
}

func NewClient(cfg ClientConfig, breaker *resilience.Breaker) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}
	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		breaker:     breaker,
	}
}

// Complete implements out.GenerativeBackend. Provider errors are returned
// unwrapped so status codes and quota wording stay visible in Error().
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call := func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}

	if c.breaker == nil {
		return call()
	}
	return resilience.Call(c.breaker, call)
}

// Unconfigured stands in when no API key is set; every call fails so the
// engine routes with the keyword fallback.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, string) (string, error) {
	return "", ErrNoAPIKey
}
