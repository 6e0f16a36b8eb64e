// Package llm adapts hosted language models to a single JSON-returning
// Generator contract.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredentialInvalid reports a rejected, missing or unbilled API key.
	ErrCredentialInvalid = errors.New("llm: credential invalid")
	// ErrEmptyResponse reports a response without text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Request is a single structured generation call.
type Request struct {
	System string
	Prompt string
	Schema *Schema
	// Credential overrides the configured API key for this call.
	Credential string
}

// Generator returns the raw JSON text produced by a model.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// Type enumerates schema node types.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
)

// Schema is a provider-neutral JSON response schema.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	// Order fixes property order for providers that honour it.
	Order []string `json:"-"`
}

// String builds a string node.
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// ArrayOf builds an array node.
func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// Object builds an object node whose properties are all required, in the
// order given as name/schema pairs.
func Object(fields ...Field) *Schema {
	s := &Schema{Type: TypeObject, Properties: make(map[string]*Schema, len(fields))}
	for _, f := range fields {
		s.Properties[f.Name] = f.Schema
		s.Required = append(s.Required, f.Name)
		s.Order = append(s.Order, f.Name)
	}
	return s
}

// Field names an object property.
type Field struct {
	Name   string
	Schema *Schema
}

// Prop is shorthand for Field{name, schema}.
func Prop(name string, schema *Schema) Field { return Field{Name: name, Schema: schema} }

// JSON renders the schema as JSON Schema text.
func (s *Schema) JSON() string {
	if s == nil {
		return "{}"
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeJSON decodes model output into target, tolerating code fences and
// prose around the JSON value.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyResponse
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizePayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload: %s)", err, snippet(sanitized))
	}
	return nil
}

func sanitizePayload(content string) string {
	trimmed := stripFence(content)
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}

func credentialFor(req Request, fallback string) (string, error) {
	if key := strings.TrimSpace(req.Credential); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(fallback); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: no api key configured", ErrCredentialInvalid)
}

func credentialMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "api key") || strings.Contains(lower, "api_key") ||
		strings.Contains(lower, "permission_denied") || strings.Contains(lower, "billing")
}
