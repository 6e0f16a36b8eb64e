package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

const anthropicMaxTokens = 4096

// AnthropicGenerator calls the Messages API. The response schema is embedded
// in the system prompt since the API has no schema-constrained mode here.
type AnthropicGenerator struct {
	model   string
	apiKey  string
	options []option.RequestOption
}

// NewAnthropicGenerator builds a generator. Extra options are applied to
// every client, which tests use to point at a local server.
func NewAnthropicGenerator(apiKey, model string, opts ...option.RequestOption) *AnthropicGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicGenerator{model: model, apiKey: strings.TrimSpace(apiKey), options: opts}
}

// Provider implements Generator.
func (g *AnthropicGenerator) Provider() string { return "anthropic" }

// Model implements Generator.
func (g *AnthropicGenerator) Model() string { return g.model }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	key, err := credentialFor(req, g.apiKey)
	if err != nil {
		return "", err
	}
	opts := append([]option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}, g.options...)
	client := anthropic.NewClient(opts...)

	system := strings.TrimSpace(req.System)
	if req.Schema != nil {
		system += "\n\nRespond with ONLY a JSON object matching this JSON Schema, no markdown:\n" + req.Schema.JSON()
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func classifyAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
		}
		return fmt.Errorf("anthropic: %w", err)
	}
	if credentialMessage(err.Error()) {
		return fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}
	return fmt.Errorf("anthropic: %w", err)
}
