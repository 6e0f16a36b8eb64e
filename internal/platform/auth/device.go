package auth

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/basherkella/cardstudio/internal/platform/requestctx"
)

// DeviceHeader carries the client-generated device identifier used for
// device-local state such as the guest gallery and preferences.
const DeviceHeader = "X-Device-ID"

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// ValidDeviceID reports whether id is an acceptable device identifier.
func ValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// RequireDeviceID stores a valid X-Device-ID on the request context and
// rejects requests without one.
func RequireDeviceID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(DeviceHeader))
			if !ValidDeviceID(id) {
				respondAuthError(w, http.StatusBadRequest, "device_id_required", "X-Device-ID header missing or malformed")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithDeviceID(r.Context(), id)))
		})
	}
}
