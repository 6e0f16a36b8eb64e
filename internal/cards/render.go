package cards

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/textutil"
)

// RenderInput is everything a card layout depends on.
type RenderInput struct {
	Kind             domain.CardKind
	Template         string
	Headline         string
	Body             string
	Source           string
	Images           []string
	Logo             string
	Font             string
	QuoteIcon        int
	ImageTransparent bool
	Date             time.Time
}

// TextBlock is a positioned run of text.
type TextBlock struct {
	Text        string  `json:"text"`
	Placeholder bool    `json:"placeholder,omitempty"`
	FontFamily  string  `json:"fontFamily"`
	FontSize    int     `json:"fontSize"`
	FontWeight  int     `json:"fontWeight"`
	LineHeight  float64 `json:"lineHeight"`
}

// Speaker is the attribution of a quote card.
type Speaker struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ImageSlot is the primary picture region.
type ImageSlot struct {
	Src         string `json:"src,omitempty"`
	Placeholder bool   `json:"placeholder"`
	Transparent bool   `json:"transparent,omitempty"`
}

// Layout is the resolved, deterministic description of a card.
type Layout struct {
	Template    TemplateID      `json:"template"`
	Kind        domain.CardKind `json:"kind"`
	Fallback    bool            `json:"fallback"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Arrangement Arrangement     `json:"arrangement"`
	Background  string          `json:"background"`
	Foreground  string          `json:"foreground"`
	Accent      string          `json:"accent"`
	Badge       string          `json:"badge,omitempty"`
	ImageRight  bool            `json:"imageRight,omitempty"`
	Font        Font            `json:"font"`
	Headline    TextBlock       `json:"headline"`
	Body        *TextBlock      `json:"body,omitempty"`
	Speaker     *Speaker        `json:"speaker,omitempty"`
	Source      string          `json:"source,omitempty"`
	Image       ImageSlot       `json:"image"`
	Header      Header          `json:"header"`
	QuoteIcon   *QuoteIcon      `json:"quoteIcon,omitempty"`
	Date        string          `json:"date"`
}

var textPolicy = bluemonday.StrictPolicy()

// Render resolves in against the catalog.
func Render(in RenderInput) Layout {
	kind := in.Kind
	if kind != domain.CardKindQuote {
		kind = domain.CardKindNews
	}
	tmpl, fallback := ResolveTemplate(kind, in.Template)
	font := ResolveFont(in.Font)

	layout := Layout{
		Template:    tmpl.ID,
		Kind:        kind,
		Fallback:    fallback,
		Width:       canvasWidth,
		Height:      CanvasHeight(kind, string(tmpl.ID)),
		Arrangement: tmpl.Arrangement,
		Background:  tmpl.Background,
		Foreground:  tmpl.Foreground,
		Accent:      tmpl.Accent,
		Badge:       tmpl.Badge,
		ImageRight:  tmpl.ImageRight,
		Font:        font,
		Source:      CleanText(in.Source),
		Header:      BrandHeader(tmpl.Header, in.Logo),
		Date:        textutil.BengaliDate(in.Date),
	}

	headline := CleanText(in.Headline)
	layout.Headline = TextBlock{Text: headline, FontFamily: font.Family, FontWeight: 700, LineHeight: 1.3}
	if headline == "" {
		layout.Headline.Text = tmpl.HeadlinePlaceholder
		layout.Headline.Placeholder = true
	}

	body := CleanText(in.Body)
	if kind == domain.CardKindQuote {
		layout.Headline.FontSize = QuoteFontSize(layout.Headline.Text)
		layout.Headline.FontWeight = 800
		icon := QuoteIconFor(in.QuoteIcon)
		layout.QuoteIcon = &icon
		name, title := SplitSpeaker(body)
		speaker := &Speaker{Name: name, Title: title}
		if name == "" {
			speaker.Name = speakerFallback
			speaker.Placeholder = true
		}
		layout.Speaker = speaker
	} else {
		layout.Headline.FontSize = tmpl.HeadlineSize
		layout.Headline.LineHeight = 1.25
		block := &TextBlock{Text: body, FontFamily: font.Family, FontSize: 14, FontWeight: 400, LineHeight: 1.5}
		if body == "" {
			block.Text = tmpl.BodyPlaceholder
			block.Placeholder = true
		}
		layout.Body = block
	}

	layout.Image = ImageSlot{Placeholder: true, Transparent: in.ImageTransparent}
	if len(in.Images) > 0 {
		if src, ok := safeImageSource(in.Images[0]); ok {
			layout.Image.Src = src
			layout.Image.Placeholder = false
		}
	}
	return layout
}

// CanvasHeight is 750 for quote cards or any quote template id, else 600.
func CanvasHeight(kind domain.CardKind, templateID string) int {
	if kind == domain.CardKindQuote || IsQuoteTemplate(templateID) {
		return portraitHeight
	}
	return squareHeight
}

// QuoteFontSize picks the headline size band for a quote of len(text) runes.
func QuoteFontSize(text string) int {
	n := utf8.RuneCountInString(text)
	switch {
	case n <= 50:
		return 52
	case n <= 80:
		return 42
	case n <= 120:
		return 36
	case n <= 180:
		return 32
	default:
		return 28
	}
}

// SplitSpeaker splits "name, title, more" at the first comma.
func SplitSpeaker(body string) (name, title string) {
	before, after, found := strings.Cut(body, ",")
	if !found {
		return strings.TrimSpace(body), ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// CleanText strips markup and normalizes whitespace at the ends.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return textutil.Normalize(html.UnescapeString(textPolicy.Sanitize(s)))
}

// safeImageSource allows inline raster data URLs and https URLs.
func safeImageSource(src string) (string, bool) {
	src = strings.TrimSpace(src)
	lower := strings.ToLower(src)
	switch {
	case src == "":
		return "", false
	case strings.HasPrefix(lower, "data:image/") && strings.Contains(lower[:min(len(lower), 64)], ";base64,"):
		return src, true
	case strings.HasPrefix(lower, "https://") && !strings.ContainsAny(src, "\"'<> "):
		return src, true
	}
	return "", false
}
