// Package ai adapts the generative model API behind a small text-in/text-out
// surface for the handlers.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"tg_ai_relay_bot/internal/config"
	"tg_ai_relay_bot/internal/logging"
)

// DefaultModel handles both plain text and image+prompt requests.
const DefaultModel = openai.GPT4oMini

const probePrompt = "Test connection"

// chatCompleter captures the subset of the OpenAI client we rely on so tests
// can stub responses without network access.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// newCompleter is overridable for tests.
var newCompleter = func(apiKey string) chatCompleter {
	return openai.NewClient(apiKey)
}

// Client wraps the inference API with the two calls the bot makes.
type Client struct {
	api    chatCompleter
	model  string
	logger *logrus.Entry
}

// NewClient constructs a Client from configuration.
func NewClient(cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.OpenAIKey) == "" {
		return nil, errors.New("inference api key is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		api:    newCompleter(cfg.OpenAIKey),
		model:  DefaultModel,
		logger: logger,
	}, nil
}

// Probe issues a minimal completion to verify the API key and connectivity at
// startup.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.GenerateFromText(ctx, probePrompt); err != nil {
		return fmt.Errorf("inference probe: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event": "inference_ready",
		"model": c.model,
	}).Info("inference adapter initialized")

	return nil
}

// GenerateFromText forwards the text verbatim to the model and returns its
// textual result.
func (c *Client) GenerateFromText(ctx context.Context, text string) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("inference client is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is required")
	}

	return c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: text,
		},
	})
}

// GenerateFromImage sends a JPEG image together with an analysis prompt and
// returns the model's textual result. The image travels inline as a base64
// data URL.
func (c *Client) GenerateFromImage(ctx context.Context, jpeg []byte, prompt string) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("inference client is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if len(jpeg) == 0 {
		return "", errors.New("image payload is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	return c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		},
	})
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		return "", errors.New("chat completion returned empty content")
	}

	return result, nil
}
