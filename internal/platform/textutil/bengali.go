package textutil

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var bengaliDigits = [10]rune{'০', '১', '২', '৩', '৪', '৫', '৬', '৭', '৮', '৯'}

var bengaliMonths = [12]string{
	"জানুয়ারি", "ফেব্রুয়ারি", "মার্চ", "এপ্রিল", "মে", "জুন",
	"জুলাই", "আগস্ট", "সেপ্টেম্বর", "অক্টোবর", "নভেম্বর", "ডিসেম্বর",
}

// BengaliDigits replaces ASCII digits with Bengali digits.
func BengaliDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return bengaliDigits[r-'0']
		}
		return r
	}, s)
}

// BengaliDate formats t as "১৯ অক্টোবর ২০২৬".
func BengaliDate(t time.Time) string {
	var b strings.Builder
	b.WriteString(BengaliDigits(strconv.Itoa(t.Day())))
	b.WriteByte(' ')
	b.WriteString(bengaliMonths[t.Month()-1])
	b.WriteByte(' ')
	b.WriteString(BengaliDigits(strconv.Itoa(t.Year())))
	return b.String()
}

// Normalize trims s and converts it to NFC.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Fold returns a case-folded, NFC form of s for comparisons.
func Fold(s string) string {
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(s))
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// RuneCount counts user-visible characters after NFC normalization.
func RuneCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.FieldsFunc(s, unicode.IsSpace))
}
