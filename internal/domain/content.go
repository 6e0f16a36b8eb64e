package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CardKind selects between the two card families.
type CardKind string

const (
	CardKindNews  CardKind = "news"
	CardKindQuote CardKind = "quote"
)

// ParseCardKind validates a card kind. An empty value defaults to news.
func ParseCardKind(value string) (CardKind, error) {
	switch kind := CardKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return CardKindNews, nil
	case CardKindNews, CardKindQuote:
		return kind, nil
	default:
		return "", fmt.Errorf("domain: unknown card kind %q", value)
	}
}

// NewsData holds the editable text fields of a card.
// For quote cards Headline is the quote and Body is "name, title".
type NewsData struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Caption  string `json:"caption"`
}

// ToolKind identifies an AI generation action.
type ToolKind string

const (
	ToolCard              ToolKind = "card"
	ToolTranslator        ToolKind = "translator"
	ToolProofreader       ToolKind = "proofreader"
	ToolScriptWriter      ToolKind = "script-writer"
	ToolSocialManager     ToolKind = "social-manager"
	ToolHeadlineGenerator ToolKind = "headline-generator"
	ToolThumbnailPrompter ToolKind = "thumbnail-prompter"
	ToolInterviewPrep     ToolKind = "interview-prep"
	ToolTickerWriter      ToolKind = "ticker-writer"
	ToolSEOOptimizer      ToolKind = "seo-optimizer"
)

// ToolKinds lists every supported generation action.
var ToolKinds = []ToolKind{
	ToolCard,
	ToolTranslator,
	ToolProofreader,
	ToolScriptWriter,
	ToolSocialManager,
	ToolHeadlineGenerator,
	ToolThumbnailPrompter,
	ToolInterviewPrep,
	ToolTickerWriter,
	ToolSEOOptimizer,
}

// ParseToolKind validates a tool kind.
func ParseToolKind(value string) (ToolKind, error) {
	kind := ToolKind(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range ToolKinds {
		if candidate == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("domain: unknown tool kind %q", value)
}

// ToolOutput is the result of one generation action. The concrete type is
// one of the *Output structs below, selected by Kind.
type ToolOutput interface {
	Kind() ToolKind
	toolOutput()
}

// CardOutput is the news or quote extraction result.
type CardOutput struct {
	CardKind CardKind `json:"cardKind"`
	NewsData
}

// TranslationOutput is the translator result.
type TranslationOutput struct {
	MainContent string `json:"mainContent"`
	Notes       string `json:"notes,omitempty"`
}

// ProofreadOutput is the proofreader result.
type ProofreadOutput struct {
	MainContent string `json:"mainContent"`
	Notes       string `json:"notes,omitempty"`
}

// ScriptSegment pairs a visual cue with its narration.
type ScriptSegment struct {
	Visual string `json:"visual"`
	Audio  string `json:"audio"`
}

// ScriptOutput is the video script result.
type ScriptOutput struct {
	Title    string          `json:"title"`
	Segments []ScriptSegment `json:"scriptSegments"`
}

// SocialOutput is the social media pack result.
type SocialOutput struct {
	FacebookCaption string   `json:"fbCaption"`
	TwitterThread   string   `json:"twitterThread"`
	Tags            []string `json:"tags"`
}

// StyledHeadline is one headline alternative.
type StyledHeadline struct {
	Style string `json:"style"`
	Text  string `json:"text"`
}

// HeadlineOutput is the headline generator result.
type HeadlineOutput struct {
	Headlines []StyledHeadline `json:"headlines"`
}

// ThumbnailOutput is the image prompt result.
type ThumbnailOutput struct {
	Prompts []string `json:"prompts"`
}

// InterviewQuestion is one categorised interview question.
type InterviewQuestion struct {
	Category string `json:"category"`
	Question string `json:"question"`
}

// InterviewOutput is the interview preparation result.
type InterviewOutput struct {
	Questions []InterviewQuestion `json:"questions"`
}

// TickerOutput is the breaking news ticker result.
type TickerOutput struct {
	Tickers []string `json:"tickers"`
}

// SEOMetadata holds search metadata for an article.
type SEOMetadata struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	FocusKeyphrase  string   `json:"focusKeyphrase"`
	Keywords        []string `json:"keywords"`
}

// SEOOutput is the SEO optimizer result.
type SEOOutput struct {
	SEO SEOMetadata `json:"seo"`
}

func (CardOutput) Kind() ToolKind        { return ToolCard }
func (TranslationOutput) Kind() ToolKind { return ToolTranslator }
func (ProofreadOutput) Kind() ToolKind   { return ToolProofreader }
func (ScriptOutput) Kind() ToolKind      { return ToolScriptWriter }
func (SocialOutput) Kind() ToolKind      { return ToolSocialManager }
func (HeadlineOutput) Kind() ToolKind    { return ToolHeadlineGenerator }
func (ThumbnailOutput) Kind() ToolKind   { return ToolThumbnailPrompter }
func (InterviewOutput) Kind() ToolKind   { return ToolInterviewPrep }
func (TickerOutput) Kind() ToolKind      { return ToolTickerWriter }
func (SEOOutput) Kind() ToolKind         { return ToolSEOOptimizer }

func (CardOutput) toolOutput()        {}
func (TranslationOutput) toolOutput() {}
func (ProofreadOutput) toolOutput()   {}
func (ScriptOutput) toolOutput()      {}
func (SocialOutput) toolOutput()      {}
func (HeadlineOutput) toolOutput()    {}
func (ThumbnailOutput) toolOutput()   {}
func (InterviewOutput) toolOutput()   {}
func (TickerOutput) toolOutput()      {}
func (SEOOutput) toolOutput()         {}

// NewToolOutput returns an empty variant for the kind, ready to decode into.
func NewToolOutput(kind ToolKind) (ToolOutput, error) {
	switch kind {
	case ToolCard:
		return &CardOutput{}, nil
	case ToolTranslator:
		return &TranslationOutput{}, nil
	case ToolProofreader:
		return &ProofreadOutput{}, nil
	case ToolScriptWriter:
		return &ScriptOutput{}, nil
	case ToolSocialManager:
		return &SocialOutput{}, nil
	case ToolHeadlineGenerator:
		return &HeadlineOutput{}, nil
	case ToolThumbnailPrompter:
		return &ThumbnailOutput{}, nil
	case ToolInterviewPrep:
		return &InterviewOutput{}, nil
	case ToolTickerWriter:
		return &TickerOutput{}, nil
	case ToolSEOOptimizer:
		return &SEOOutput{}, nil
	default:
		return nil, fmt.Errorf("domain: unknown tool kind %q", kind)
	}
}

// MarshalToolOutput encodes a variant as a flat object tagged with its kind.
func MarshalToolOutput(output ToolOutput) ([]byte, error) {
	if output == nil {
		return nil, fmt.Errorf("domain: nil tool output")
	}
	body, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(output.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}
