package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator calls the Gemini API with a response schema.
type GeminiGenerator struct {
	model      string
	apiKey     string
	newModels  func(ctx context.Context, apiKey string) (geminiModels, error)
	mu         sync.Mutex
	cachedKey  string
	cachedImpl geminiModels
}

// NewGeminiGenerator builds a generator. apiKey may be empty when every call
// carries a credential override.
func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{
		model:  model,
		apiKey: strings.TrimSpace(apiKey),
		newModels: func(ctx context.Context, key string) (geminiModels, error) {
			client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
			if err != nil {
				return nil, err
			}
			return client.Models, nil
		},
	}
}

// Provider implements Generator.
func (g *GeminiGenerator) Provider() string { return "gemini" }

// Model implements Generator.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	key, err := credentialFor(req, g.apiKey)
	if err != nil {
		return "", err
	}
	models, err := g.models(ctx, key)
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseSchema = toGenAISchema(req.Schema)
	}

	resp, err := models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// models reuses one client per key; overrides replace the cached client.
func (g *GeminiGenerator) models(ctx context.Context, key string) (geminiModels, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cachedImpl != nil && g.cachedKey == key {
		return g.cachedImpl, nil
	}
	impl, err := g.newModels(ctx, key)
	if err != nil {
		return nil, err
	}
	g.cachedKey, g.cachedImpl = key, impl
	return impl, nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var code int
	var status, message string
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, message = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	default:
		message = err.Error()
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden ||
		strings.EqualFold(status, "PERMISSION_DENIED") || strings.EqualFold(status, "UNAUTHENTICATED") ||
		credentialMessage(message) {
		return fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}
	return fmt.Errorf("gemini: %w", err)
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description, Required: s.Required, PropertyOrdering: s.Order}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeInteger:
		out.Type = genai.TypeInteger
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	out.Items = toGenAISchema(s.Items)
	return out
}
