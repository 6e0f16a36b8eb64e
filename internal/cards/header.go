package cards

import "strings"

// HeaderVariant selects the brand header color scheme.
type HeaderVariant string

const (
	HeaderLight     HeaderVariant = "light"
	HeaderDark      HeaderVariant = "dark"
	HeaderColored   HeaderVariant = "colored"
	HeaderMonoRed   HeaderVariant = "mono-red"
	HeaderMonoWhite HeaderVariant = "mono-white"
	HeaderRedWhite  HeaderVariant = "red-white"
	HeaderGold      HeaderVariant = "gold"
	HeaderTeal      HeaderVariant = "teal"
	HeaderBlack     HeaderVariant = "black"
	HeaderWhite     HeaderVariant = "white"
)

type headerPalette struct {
	text, accent, border string
}

var headerPalettes = map[HeaderVariant]headerPalette{
	HeaderLight:     {BrandGreen, BrandRed, BrandGreen},
	HeaderDark:      {"#ffffff", BrandRed, "#ffffff"},
	HeaderColored:   {BrandGreen, BrandRed, BrandGreen},
	HeaderMonoRed:   {BrandRed, BrandRed, BrandRed},
	HeaderMonoWhite: {"#ffffff", "#ffffff", "#ffffff"},
	HeaderRedWhite:  {"#ffffff", "#ffffff", "#ffffff"},
	HeaderGold:      {BrandGreen, "#ffffff", BrandGreen},
	HeaderTeal:      {BrandGreen, BrandRed, BrandGreen},
	HeaderBlack:     {"#000000", BrandRed, "#000000"},
	HeaderWhite:     {"#ffffff", "#ffffff", "#ffffff"},
}

// HeaderVariants lists every variant in declaration order.
func HeaderVariants() []HeaderVariant {
	return []HeaderVariant{
		HeaderLight, HeaderDark, HeaderColored, HeaderMonoRed, HeaderMonoWhite,
		HeaderRedWhite, HeaderGold, HeaderTeal, HeaderBlack, HeaderWhite,
	}
}

// ParseHeaderVariant maps unknown values to light.
func ParseHeaderVariant(value string) HeaderVariant {
	v := HeaderVariant(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := headerPalettes[v]; ok {
		return v
	}
	return HeaderLight
}

// Header is the brand header sub-layout.
type Header struct {
	Variant     HeaderVariant `json:"variant"`
	Logo        string        `json:"logo,omitempty"`
	Monogram    string        `json:"monogram,omitempty"`
	WordmarkA   string        `json:"wordmarkA"`
	WordmarkB   string        `json:"wordmarkB"`
	Tagline     string        `json:"tagline"`
	TextColor   string        `json:"textColor"`
	AccentColor string        `json:"accentColor"`
	BorderColor string        `json:"borderColor"`
}

// BrandHeader lays out the header for variant. A usable logo replaces the
// monogram.
func BrandHeader(variant HeaderVariant, logo string) Header {
	variant = ParseHeaderVariant(string(variant))
	p := headerPalettes[variant]
	h := Header{
		Variant:     variant,
		WordmarkA:   "বাঁশের",
		WordmarkB:   "কেল্লা",
		Tagline:     "News Media",
		TextColor:   p.text,
		AccentColor: p.accent,
		BorderColor: p.border,
	}
	if src, ok := safeImageSource(logo); ok {
		h.Logo = src
	} else {
		h.Monogram = "bk"
	}
	return h
}
