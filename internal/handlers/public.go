package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
)

const catalogCacheControl = "public, max-age=900"

// authMessages are the Bengali texts clients show for Firebase auth error codes.
var authMessages = map[string]string{
	"auth/invalid-credential":        "ইমেইল বা পাসওয়ার্ড ভুল হয়েছে।",
	"auth/wrong-password":            "ইমেইল বা পাসওয়ার্ড ভুল হয়েছে।",
	"auth/email-already-in-use":      "এই ইমেইল দিয়ে ইতিমধ্যে একাউন্ট খোলা আছে।",
	"auth/weak-password":             "পাসওয়ার্ড অন্তত ৬ অক্ষরের হতে হবে।",
	"auth/popup-closed-by-user":      "লগিন পপ-আপটি বন্ধ করা হয়েছে।",
	"auth/invalid-phone-number":      "ফোন নাম্বারটি সঠিক নয়।",
	"auth/too-many-requests":         "অনেকবার চেষ্টা করা হয়েছে। কিছুক্ষণ পর চেষ্টা করুন।",
	"auth/captcha-check-failed":      "ReCAPTCHA ভেরিফিকেশন ব্যর্থ হয়েছে (ডোমেইন পারমিশন চেক করুন)।",
	"auth/internal-error":            "সার্ভার এরর। ডোমেইন অথোরাইজেশন বা ইন্টারনেট সংযোগ চেক করুন।",
	"auth/invalid-verification-code": "OTP ভুল হয়েছে। আবার চেষ্টা করুন।",
	"auth/unauthorized-domain":       "এই ডোমেইন থেকে লগিন অনুমোদিত নয়।",
}

// authMessageFallback is prefixed to unknown codes.
const authMessageFallback = "সমস্যা হয়েছে: "

// PublicHandlers exposes unauthenticated catalog endpoints.
type PublicHandlers struct{}

// NewPublicHandlers constructs the public handlers.
func NewPublicHandlers() *PublicHandlers {
	return &PublicHandlers{}
}

// Routes wires the /public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/templates", h.templates)
	r.Get("/auth-messages", h.authMessages)
}

type templateCatalogPayload struct {
	News           []cards.Template      `json:"news"`
	Quote          []cards.Template      `json:"quote"`
	Fonts          []cards.Font          `json:"fonts"`
	HeaderVariants []cards.HeaderVariant `json:"headerVariants"`
	Defaults       map[string]string     `json:"defaults"`
	Tools          []domain.ToolKind     `json:"tools"`
}

func (h *PublicHandlers) templates(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", catalogCacheControl)
	httpx.WriteJSON(w, http.StatusOK, templateCatalogPayload{
		News:           cards.Templates(domain.CardKindNews),
		Quote:          cards.Templates(domain.CardKindQuote),
		Fonts:          cards.Fonts(),
		HeaderVariants: cards.HeaderVariants(),
		Defaults: map[string]string{
			"news":  string(cards.DefaultNewsTemplate),
			"quote": string(cards.DefaultQuoteTemplate),
			"font":  string(cards.DefaultFont),
		},
		Tools: domain.ToolKinds,
	})
}

type authMessagePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *PublicHandlers) authMessages(w http.ResponseWriter, r *http.Request) {
	codes := make([]string, 0, len(authMessages))
	for code := range authMessages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	items := make([]authMessagePayload, 0, len(codes))
	for _, code := range codes {
		items = append(items, authMessagePayload{Code: code, Message: authMessages[code]})
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"messages": items,
		"fallback": authMessageFallback,
	})
}
