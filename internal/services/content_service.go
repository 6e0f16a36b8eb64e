package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/llm"
	"github.com/basherkella/cardstudio/internal/platform/observability"
	"github.com/basherkella/cardstudio/internal/platform/textutil"
)

const (
	defaultMaxInputRunes = 20000
	minTickerLines       = 6
	maxTickerLines       = 8
	maxTickerWords       = 8
)

var (
	errTextRequired       = errors.New("content: text is required")
	errTextTooLong        = errors.New("content: text is too long")
	errUnknownTool        = errors.New("content: unknown tool")
	errCredentialInvalid  = errors.New("content: ai credential invalid")
	errGenerationFailed   = errors.New("content: generation failed")
	errGenerationInvalid  = errors.New("content: generation returned an invalid result")
	errGenerationInFlight = errors.New("content: generation already in progress")
)

var (
	// ErrContentTextRequired indicates an empty input text.
	ErrContentTextRequired = errTextRequired
	// ErrContentTextTooLong indicates the input exceeds the configured rune limit.
	ErrContentTextTooLong = errTextTooLong
	// ErrContentUnknownTool indicates an unsupported tool kind.
	ErrContentUnknownTool = errUnknownTool
	// ErrCredentialInvalid indicates the AI provider rejected the credential.
	ErrCredentialInvalid = errCredentialInvalid
	// ErrGenerationFailed indicates a network, timeout or provider failure.
	ErrGenerationFailed = errGenerationFailed
	// ErrGenerationInvalid indicates an empty or malformed model response.
	ErrGenerationInvalid = errGenerationInvalid
	// ErrGenerationInFlight indicates a duplicate concurrent submission.
	ErrGenerationInFlight = errGenerationInFlight
)

// GenerationRecorder records generation outcomes. *observability.Metrics
// satisfies it.
type GenerationRecorder interface {
	RecordGeneration(ctx context.Context, tool, outcome string, elapsed time.Duration)
}

// ContentServiceDeps bundles the dependencies of the content service.
type ContentServiceDeps struct {
	Generator     llm.Generator
	Metrics       GenerationRecorder
	Timeout       time.Duration
	MaxInputRunes int
	Clock         func() time.Time
	Logger        Logger
}

type contentService struct {
	generator llm.Generator
	metrics   GenerationRecorder
	timeout   time.Duration
	maxRunes  int
	clock     func() time.Time
	logger    Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

var _ ContentService = (*contentService)(nil)

// NewContentService wires the AI tool runner.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Generator == nil {
		return nil, errors.New("content service: generator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	maxRunes := deps.MaxInputRunes
	if maxRunes <= 0 {
		maxRunes = defaultMaxInputRunes
	}
	return &contentService{
		generator: deps.Generator,
		metrics:   deps.Metrics,
		timeout:   deps.Timeout,
		maxRunes:  maxRunes,
		clock:     clock,
		logger:    deps.Logger,
		inFlight:  map[string]struct{}{},
	}, nil
}

func (s *contentService) Generate(ctx context.Context, cmd GenerateCommand) (ToolOutput, error) {
	text := textutil.Normalize(cmd.Text)
	if text == "" {
		return nil, errTextRequired
	}
	if textutil.RuneCount(text) > s.maxRunes {
		return nil, fmt.Errorf("%w: limit is %d characters", errTextTooLong, s.maxRunes)
	}
	cardKind := cmd.CardKind
	if cardKind == "" {
		cardKind = domain.CardKindNews
	}
	prompt, ok := promptFor(cmd.Kind, cardKind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownTool, cmd.Kind)
	}

	key := inFlightKey(cmd.ActorKey, cmd.Kind, cardKind)
	if !s.acquire(key) {
		return nil, errGenerationInFlight
	}
	defer s.release(key)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "ai.generate",
		attribute.String("ai.tool", string(cmd.Kind)),
		attribute.String("ai.provider", s.generator.Provider()),
		attribute.String("ai.model", s.generator.Model()),
		attribute.Int("ai.input_runes", textutil.RuneCount(text)),
	)
	start := s.clock()
	output, err := s.run(ctx, cmd.Kind, cardKind, prompt, text, cmd.CredentialOverride)
	elapsed := s.clock().Sub(start)
	observability.EndSpan(span, err)

	outcome := outcomeOf(err)
	if s.metrics != nil {
		s.metrics.RecordGeneration(ctx, string(cmd.Kind), outcome, elapsed)
	}
	fields := map[string]any{
		"tool":      string(cmd.Kind),
		"provider":  s.generator.Provider(),
		"outcome":   outcome,
		"elapsedMs": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.log(ctx, "content.generate", fields)

	return output, err
}

func (s *contentService) run(ctx context.Context, kind domain.ToolKind, cardKind domain.CardKind, prompt toolPrompt, text, credential string) (ToolOutput, error) {
	raw, err := s.generator.Generate(ctx, llm.Request{
		System:     prompt.system,
		Prompt:     text,
		Schema:     prompt.schema,
		Credential: credential,
	})
	switch {
	case errors.Is(err, llm.ErrCredentialInvalid):
		return nil, fmt.Errorf("%w: %w", errCredentialInvalid, err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return nil, fmt.Errorf("%w: %w", errGenerationInvalid, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", errGenerationFailed, err)
	}

	output, err := domain.NewToolOutput(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errUnknownTool, kind)
	}
	if err := llm.DecodeJSON(raw, output); err != nil {
		return nil, fmt.Errorf("%w: %w", errGenerationInvalid, err)
	}
	if kind == domain.ToolCard {
		if err := requireKeys(raw, "headline", "body", "caption"); err != nil {
			return nil, err
		}
	}
	output = deref(output)
	if card, ok := output.(domain.CardOutput); ok {
		card.CardKind = cardKind
		output = card
	}
	if err := validateToolOutput(output); err != nil {
		return nil, err
	}
	return output, nil
}

// deref turns the pointer NewToolOutput returns into the value variant so
// callers can type-switch on plain structs.
func deref(output ToolOutput) ToolOutput {
	switch v := output.(type) {
	case *domain.CardOutput:
		return *v
	case *domain.TranslationOutput:
		return *v
	case *domain.ProofreadOutput:
		return *v
	case *domain.ScriptOutput:
		return *v
	case *domain.SocialOutput:
		return *v
	case *domain.HeadlineOutput:
		return *v
	case *domain.ThumbnailOutput:
		return *v
	case *domain.InterviewOutput:
		return *v
	case *domain.TickerOutput:
		return *v
	case *domain.SEOOutput:
		return *v
	default:
		return output
	}
}

func requireKeys(raw string, keys ...string) error {
	fields := map[string]json.RawMessage{}
	if err := llm.DecodeJSON(raw, &fields); err != nil {
		return fmt.Errorf("%w: %w", errGenerationInvalid, err)
	}
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: missing %s", errGenerationInvalid, key)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errGenerationInvalid}, args...)...)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func validateToolOutput(output ToolOutput) error {
	switch v := output.(type) {
	case domain.CardOutput:
		if blank(v.Headline) {
			return invalid("headline is empty")
		}
	case domain.TranslationOutput:
		if blank(v.MainContent) {
			return invalid("mainContent is empty")
		}
	case domain.ProofreadOutput:
		if blank(v.MainContent) {
			return invalid("mainContent is empty")
		}
	case domain.ScriptOutput:
		if blank(v.Title) || len(v.Segments) == 0 {
			return invalid("script needs a title and at least one segment")
		}
	case domain.SocialOutput:
		if blank(v.FacebookCaption) || blank(v.TwitterThread) || len(v.Tags) == 0 {
			return invalid("social pack is incomplete")
		}
	case domain.HeadlineOutput:
		if len(v.Headlines) == 0 {
			return invalid("no headlines")
		}
	case domain.ThumbnailOutput:
		if len(v.Prompts) == 0 {
			return invalid("no prompts")
		}
	case domain.InterviewOutput:
		if len(v.Questions) == 0 {
			return invalid("no questions")
		}
	case domain.TickerOutput:
		if n := len(v.Tickers); n < minTickerLines || n > maxTickerLines {
			return invalid("expected %d-%d ticker lines, got %d", minTickerLines, maxTickerLines, n)
		}
		for i, line := range v.Tickers {
			if words := textutil.WordCount(line); words == 0 || words >= maxTickerWords {
				return invalid("ticker line %d has %d words", i+1, words)
			}
		}
	case domain.SEOOutput:
		if blank(v.SEO.MetaTitle) || blank(v.SEO.MetaDescription) {
			return invalid("seo metadata is incomplete")
		}
	default:
		return invalid("unexpected output %T", output)
	}
	return nil
}

func inFlightKey(actor string, kind domain.ToolKind, cardKind domain.CardKind) string {
	if kind == domain.ToolCard {
		return actor + "|" + string(kind) + ":" + string(cardKind)
	}
	return actor + "|" + string(kind)
}

func (s *contentService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *contentService) release(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, errCredentialInvalid):
		return "credential_invalid"
	case errors.Is(err, errGenerationInvalid):
		return "invalid"
	default:
		return "failed"
	}
}

func (s *contentService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
