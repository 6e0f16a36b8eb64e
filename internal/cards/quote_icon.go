package cards

// QuoteIcon is one of the quotation mark glyphs.
type QuoteIcon struct {
	Index   int    `json:"index"`
	ViewBox string `json:"viewBox"`
	Path    string `json:"path"`
}

var quoteIcons = [...]QuoteIcon{
	{Index: 0, ViewBox: "0 0 24 24", Path: "M6 17h3l2-4V7H5v6h3zm8 0h3l2-4V7h-6v6h3z"},
	{Index: 1, ViewBox: "0 0 24 24", Path: "M10 7L8 11H11V17H5V11L7 7H10ZM18 7L16 11H19V17H13V11L15 7H18Z"},
	{Index: 2, ViewBox: "0 0 24 24", Path: "M9.983 3v7.391c0 5.704-3.731 9.57-8.983 10.609l-.995-2.151c2.432-.917 3.995-3.638 3.995-5.849h-4v-10h9.983zm14.017 0v7.391c0 5.704-3.748 9.571-9 10.609l-.996-2.151c2.433-.917 3.996-3.638 3.996-5.849h-3.983v-10h9.983z"},
}

// QuoteIconFor returns icon index mod 3; negative indexes wrap.
func QuoteIconFor(index int) QuoteIcon {
	n := len(quoteIcons)
	return quoteIcons[((index%n)+n)%n]
}
