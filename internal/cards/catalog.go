// Package cards lays out news and quote cards and renders them to HTML for
// rasterization. Everything here is pure: no clock, no I/O.
package cards

import (
	"strings"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
)

// Brand colors.
const (
	BrandRed   = "#da291c"
	BrandGreen = "#008542"
)

// DefaultLocation is Bangladesh Standard Time (UTC+6, no daylight saving).
var DefaultLocation = time.FixedZone("Asia/Dhaka", 6*60*60)

const (
	canvasWidth    = 600
	squareHeight   = 600
	portraitHeight = 750
	quotePrefix    = "bk-quote-"
)

// TemplateID names a card design.
type TemplateID string

// Default templates per card kind.
const (
	DefaultNewsTemplate  TemplateID = "bk-classic-center"
	DefaultQuoteTemplate TemplateID = "bk-quote-modern"
)

// Arrangement is the coarse geometry of a template.
type Arrangement string

const (
	ArrangeImageTop    Arrangement = "image-top"
	ArrangeImageMiddle Arrangement = "image-middle"
	ArrangeSplit       Arrangement = "split"
	ArrangeOverlay     Arrangement = "overlay"
	ArrangeCentered    Arrangement = "centered"
	ArrangeCircle      Arrangement = "circle"
	ArrangeSidebar     Arrangement = "sidebar"
	ArrangeBlock       Arrangement = "block"
)

// Template is one catalog entry.
type Template struct {
	ID          TemplateID      `json:"id"`
	Kind        domain.CardKind `json:"kind"`
	Name        string          `json:"name"`
	Arrangement Arrangement     `json:"arrangement"`
	Background  string          `json:"background"`
	Foreground  string          `json:"foreground"`
	Accent      string          `json:"accent"`
	Header      HeaderVariant   `json:"header"`
	// HeadlineSize is the fixed headline size of news templates in px.
	// Quote templates size the headline by length instead.
	HeadlineSize int    `json:"headlineSize,omitempty"`
	Badge        string `json:"badge,omitempty"`
	// ImageRight mirrors split, sidebar and block arrangements.
	ImageRight          bool   `json:"imageRight,omitempty"`
	HeadlinePlaceholder string `json:"-"`
	BodyPlaceholder     string `json:"-"`
}

const (
	newsHeadlineFallback = "সংবাদ শিরোনাম"
	newsBodyFallback     = "সংবাদের বিস্তারিত অংশ বা সাব-হেডলাইন এখানে থাকবে।"
	quoteFallback        = "উক্তি বা বিশেষ কোনো কথা..."
	speakerFallback      = "বক্তার নাম"
)

func news(id, name string, arr Arrangement, bg, fg, accent string, header HeaderVariant, size int, badge string) Template {
	return Template{
		ID: TemplateID(id), Kind: domain.CardKindNews, Name: name, Arrangement: arr,
		Background: bg, Foreground: fg, Accent: accent, Header: header,
		HeadlineSize: size, Badge: badge,
		HeadlinePlaceholder: newsHeadlineFallback, BodyPlaceholder: newsBodyFallback,
	}
}

func quote(suffix, name string, arr Arrangement, bg, fg, accent string, header HeaderVariant, placeholder string) Template {
	if placeholder == "" {
		placeholder = quoteFallback
	}
	return Template{
		ID: TemplateID(quotePrefix + suffix), Kind: domain.CardKindQuote, Name: name, Arrangement: arr,
		Background: bg, Foreground: fg, Accent: accent, Header: header,
		HeadlinePlaceholder: placeholder, BodyPlaceholder: speakerFallback,
	}
}

var templates = []Template{
	withPlaceholder(news("bk-classic-center", "ক্লাসিক সেন্টার", ArrangeImageTop, "#ffffff", "#111827", BrandRed, HeaderColored, 30, "ব্রেকিং নিউজ"), "এখানে আপনার সংবাদ শিরোনাম প্রদর্শিত হবে"),
	withPlaceholder(news("bk-dark-studio", "ডার্ক স্টুডিও", ArrangeImageMiddle, "#1a1a1a", "#ffffff", BrandRed, HeaderDark, 36, "Exclusive"), "ডার্ক মোডে সংবাদ শিরোনাম"),
	withPlaceholder(news("bk-ruby-prime", "রুবি প্রাইম", ArrangeOverlay, "#ffffff", BrandRed, BrandRed, HeaderColored, 30, "LIVE UPDATE"), "রুবি প্রাইম ডিজাইনে শিরোনাম"),
	news("bk-emerald-slate", "এমারেল্ড স্লেট", ArrangeImageTop, "#0f2e22", "#ffffff", BrandGreen, HeaderWhite, 32, ""),
	news("bk-crimson-focus", "ক্রিমসন ফোকাস", ArrangeOverlay, "#2b0a08", "#ffffff", BrandRed, HeaderRedWhite, 34, "ব্রেকিং"),
	news("bk-elegant-border", "এলিগ্যান্ট বর্ডার", ArrangeImageTop, "#fffdf7", "#1f2937", BrandGreen, HeaderLight, 30, ""),
	news("bk-midnight-impact", "মিডনাইট ইমপ্যাক্ট", ArrangeOverlay, "#0b1120", "#ffffff", BrandRed, HeaderDark, 36, ""),
	news("bk-golden-hour", "গোল্ডেন আওয়ার", ArrangeImageTop, "#fbbf24", "#1a1a1a", BrandGreen, HeaderGold, 30, ""),
	news("bk-clean-teal", "ক্লিন টিল", ArrangeImageTop, "#f0fdfa", "#134e4a", "#0d9488", HeaderTeal, 30, ""),
	news("bk-bold-monochrome", "বোল্ড মনোক্রোম", ArrangeImageMiddle, "#ffffff", "#000000", "#000000", HeaderBlack, 36, ""),
	news("bk-vibrant-overlay", "ভাইব্রেন্ট ওভারলে", ArrangeOverlay, "#000000", "#ffffff", BrandGreen, HeaderMonoWhite, 34, ""),
	withPlaceholder(news("bk-modern-split", "মডার্ন স্প্লিট", ArrangeSplit, "#f0fdf4", "#1f2937", BrandGreen, HeaderColored, 30, ""), "মডার্ন স্প্লিট ডিজাইন"),
	news("bk-red-headline", "রেড হেডলাইন", ArrangeImageTop, BrandRed, "#ffffff", "#ffffff", HeaderRedWhite, 32, ""),
	news("bk-focus-red", "ফোকাস রেড", ArrangeOverlay, "#ffffff", "#111827", BrandRed, HeaderMonoRed, 32, "ফোকাস"),
	news("bk-elegant-light", "এলিগ্যান্ট লাইট", ArrangeImageTop, "#fafaf9", "#292524", BrandGreen, HeaderLight, 30, ""),
	news("bk-premium-minimal", "প্রিমিয়াম মিনিমাল", ArrangeCentered, "#ffffff", "#111827", BrandRed, HeaderLight, 30, ""),
	news("bk-corporate-dark", "কর্পোরেট ডার্ক", ArrangeSplit, "#111827", "#f9fafb", BrandGreen, HeaderDark, 30, ""),

	quote("modern", "মডার্ন", ArrangeCentered, "#ffffff", "#111827", BrandGreen, HeaderColored, ""),
	quote("glass", "গ্লাস", ArrangeOverlay, "#0f172a", "#ffffff", BrandGreen, HeaderWhite, ""),
	quote("red-classic", "রেড ক্লাসিক", ArrangeCentered, BrandRed, "#ffffff", "#ffffff", HeaderRedWhite, ""),
	quote("author-focus", "অথর ফোকাস", ArrangeImageTop, "#ffffff", "#111827", BrandRed, HeaderColored, ""),
	quote("minimal-serif", "মিনিমাল সেরিফ", ArrangeCentered, "#fafaf9", "#1c1917", "#78716c", HeaderLight, ""),
	quote("dark-pro", "ডার্ক প্রো", ArrangeSplit, "#111111", "#ffffff", BrandRed, HeaderDark, ""),
	quote("image-overlay", "ইমেজ ওভারলে", ArrangeOverlay, "#000000", "#ffffff", BrandGreen, HeaderMonoWhite, ""),
	quote("impact-yellow", "ইমপ্যাক্ট ইয়েলো", ArrangeBlock, "#facc15", "#000000", "#000000", HeaderBlack, ""),
	quote("simple-border", "সিম্পল বর্ডার", ArrangeCentered, "#ffffff", "#111827", BrandGreen, HeaderLight, ""),
	quote("gradient-flow", "গ্রেডিয়েন্ট ফ্লো", ArrangeCentered, "#064e3b", "#ffffff", "#fbbf24", HeaderWhite, ""),
	quote("sidebar-green", "সাইডবার গ্রিন", ArrangeSidebar, "#ffffff", "#111827", BrandGreen, HeaderColored, ""),
	quote("sidebar-red", "সাইডবার রেড", ArrangeSidebar, "#ffffff", "#111827", BrandRed, HeaderMonoRed, ""),
	withImageRight(quote("sidebar-right", "সাইডবার রাইট", ArrangeSidebar, "#ffffff", "#111827", BrandGreen, HeaderColored, "")),
	quote("tv-style", "টিভি স্টাইল", ArrangeBlock, "#0b1120", "#ffffff", BrandRed, HeaderRedWhite, ""),
	quote("magazine", "ম্যাগাজিন", ArrangeImageTop, "#fffbeb", "#1c1917", BrandRed, HeaderLight, ""),
	quote("dynamic-angle", "ডায়নামিক অ্যাঙ্গেল", ArrangeSplit, "#ffffff", "#111827", BrandRed, HeaderColored, ""),
	quote("corporate-clean", "কর্পোরেট ক্লিন", ArrangeSplit, "#f8fafc", "#0f172a", BrandGreen, HeaderLight, ""),
	quote("outline-pop", "আউটলাইন পপ", ArrangeCentered, "#ffffff", "#000000", BrandRed, HeaderBlack, ""),
	quote("pro-minimal", "প্রো মিনিমাল", ArrangeCentered, "#ffffff", "#111827", "#6b7280", HeaderLight, ""),
	quote("glass-elegance", "গ্লাস এলিগ্যান্স", ArrangeOverlay, "#1e293b", "#ffffff", "#fbbf24", HeaderGold, ""),
	quote("brand-focus", "ব্র্যান্ড ফোকাস", ArrangeBlock, BrandGreen, "#ffffff", BrandRed, HeaderWhite, ""),
	withImageRight(quote("block-red", "ব্লক রেড", ArrangeBlock, BrandRed, "#ffffff", "#ffffff", HeaderColored, "এই মুহূর্তে দেশের গুরুত্বপূর্ণ কোনো সিদ্ধান্তে একজন মানুষ আছেন, যাকে সবাই মানবে...")),
	quote("soft-gradient", "সফট গ্রেডিয়েন্ট", ArrangeSidebar, "#f0fdf4", "#1a1a1a", BrandRed, HeaderColored, "দুই দুইবার স্বাধীন হলাম..."),
	quote("circle-headline", "সার্কেল হেডলাইন", ArrangeCircle, "#fffbf7", "#000000", BrandGreen, HeaderColored, "আমরা আর সালমান এফ রহমান চাই না..."),
}

func withPlaceholder(t Template, headline string) Template {
	t.HeadlinePlaceholder = headline
	return t
}

func withImageRight(t Template) Template {
	t.ImageRight = true
	return t
}

var templateIndex = func() map[TemplateID]Template {
	idx := make(map[TemplateID]Template, len(templates))
	for _, t := range templates {
		idx[t.ID] = t
	}
	return idx
}()

// Templates returns the catalog for kind, or every template when kind is
// empty, in catalog order.
func Templates(kind domain.CardKind) []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		if kind == "" || t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// LookupTemplate finds id regardless of kind.
func LookupTemplate(id string) (Template, bool) {
	t, ok := templateIndex[TemplateID(strings.TrimSpace(id))]
	return t, ok
}

// ResolveTemplate returns the template for id within kind. Unknown ids and
// ids of the other kind resolve to the kind's default with fallback=true.
func ResolveTemplate(kind domain.CardKind, id string) (Template, bool) {
	if t, ok := LookupTemplate(id); ok && t.Kind == kind {
		return t, false
	}
	if kind == domain.CardKindQuote {
		return templateIndex[DefaultQuoteTemplate], true
	}
	return templateIndex[DefaultNewsTemplate], true
}

// FontID names a Bengali font family.
type FontID string

// DefaultFont is used for unknown font ids.
const DefaultFont FontID = "hind-siliguri"

// Font is a selectable typeface.
type Font struct {
	ID     FontID `json:"id"`
	Family string `json:"family"`
	Label  string `json:"label"`
}

var fonts = []Font{
	{ID: "hind-siliguri", Family: "Hind Siliguri", Label: "হিন্দ শিলিগুড়ি"},
	{ID: "noto-serif-bengali", Family: "Noto Serif Bengali", Label: "নোটো সেরিফ"},
	{ID: "tiro-bangla", Family: "Tiro Bangla", Label: "তিরো বাংলা"},
	{ID: "baloo-da-2", Family: "Baloo Da 2", Label: "বালু দা"},
	{ID: "galada", Family: "Galada", Label: "গালাদা"},
	{ID: "anek-bangla", Family: "Anek Bangla", Label: "অনেক বাংলা"},
}

// Fonts returns the selectable fonts.
func Fonts() []Font {
	return append([]Font(nil), fonts...)
}

// LookupFont reports whether id is a known font.
func LookupFont(id string) (Font, bool) {
	for _, f := range fonts {
		if string(f.ID) == strings.TrimSpace(id) {
			return f, true
		}
	}
	return Font{}, false
}

// ResolveFont returns the font for id or the default.
func ResolveFont(id string) Font {
	if f, ok := LookupFont(id); ok {
		return f
	}
	return fonts[0]
}

// IsQuoteTemplate reports whether id belongs to the quote family by prefix.
func IsQuoteTemplate(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), quotePrefix)
}
