// Package narrative turns analysis statistics into prose through an
// OpenAI-compatible chat completion API.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// ErrDisabled is returned by the no-op narrator.
var ErrDisabled = errors.New("narrative service is not configured")

// maxRecommendations caps the free-form lines taken from one reply.
const maxRecommendations = 5

const systemPrompt = "You are an engineering manager reviewing knowledge concentration in a software repository. " +
	"Answer plainly and briefly. Never invent numbers that are not in the statistics."

// Client is a Narrator backed by an OpenAI-compatible endpoint.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
}

var _ contract.Narrator = &Client{} // Compile-time check

// New returns a narrator for cfg. Without an API key the no-op narrator is returned.
func New(cfg contract.NarrativeConfig) contract.Narrator {
	if cfg.APIKey == "" {
		return Noop{}
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = contract.DefaultModel
	}
	logger.Debug().Str("model", model).Str("base_url", clientConfig.BaseURL).Msg("narrative service enabled")
	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: 0.3,
	}
}

// Enabled implements the Narrator interface.
func (c *Client) Enabled() bool { return true }

// Summarize implements the Narrator interface.
func (c *Client) Summarize(ctx context.Context, req contract.NarrativeRequest) (string, error) {
	facts, err := json.Marshal(req.Facts)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s facts: %w", req.Subject, err)
	}
	prompt := fmt.Sprintf("Write a two sentence summary of this %s from the statistics below.\n\n%s", req.Subject, facts)
	return c.complete(ctx, prompt)
}

// Recommend implements the Narrator interface.
func (c *Client) Recommend(ctx context.Context, req contract.NarrativeRequest) ([]string, error) {
	facts, err := json.Marshal(req.Facts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s facts: %w", req.Subject, err)
	}
	prompt := fmt.Sprintf("List up to %d concrete actions that reduce bus-factor risk for this %s, one per line starting with '- '.\n\n%s",
		maxRecommendations, req.Subject, facts)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseList(content, maxRecommendations), nil
}

// Label implements the Narrator interface.
func (c *Client) Label(ctx context.Context, paths []string) (string, error) {
	prompt := "Name the functional area these files belong to in at most four words. Reply with the name only.\n\n" +
		strings.Join(paths, "\n")
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	label := strings.Trim(strings.TrimSpace(content), "\"'`.")
	if label == "" {
		return "", errors.New("narrative service returned an empty label")
	}
	return label, nil
}

// complete sends one user prompt and returns the first choice.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("narrative API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from narrative service")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.Debug().Int("chars", len(content)).Msg("narrative response")
	return content, nil
}

// ParseList extracts bullet or numbered lines from a reply, at most limit of them.
// A reply without list markers is returned line by line.
func ParseList(content string, limit int) []string {
	var items []string
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
		if line == "" {
			continue
		}
		items = append(items, line)
		if len(items) == limit {
			break
		}
	}
	return items
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Noop is the narrator used when no service is configured.
type Noop struct{}

var _ contract.Narrator = Noop{} // Compile-time check

// Enabled implements the Narrator interface.
func (Noop) Enabled() bool { return false }

// Summarize implements the Narrator interface.
func (Noop) Summarize(context.Context, contract.NarrativeRequest) (string, error) {
	return "", ErrDisabled
}

// Recommend implements the Narrator interface.
func (Noop) Recommend(context.Context, contract.NarrativeRequest) ([]string, error) {
	return nil, ErrDisabled
}

// Label implements the Narrator interface.
func (Noop) Label(context.Context, []string) (string, error) {
	return "", ErrDisabled
}
