package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
	"github.com/basherkella/cardstudio/internal/repositories"
	"github.com/basherkella/cardstudio/internal/services"
)

const defaultBodyLimit = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads at most limit bytes into dst, rejecting unknown fields.
// On failure it writes the error response and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// requestOwner selects the gallery owner: the signed-in user, else the device.
func requestOwner(ctx context.Context) services.Owner {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		return domain.Owner{UserID: identity.UID}
	}
	return domain.Owner{DeviceID: requestctx.DeviceID(ctx)}
}

// actorKey identifies the caller for in-flight guards. Guest keys pair the
// client address with the device so one address cannot mint fresh keys by
// rotating X-Device-ID alone.
func actorKey(r *http.Request) string {
	if uid := callerUID(r); uid != "" {
		return "user:" + uid
	}
	host := clientHost(r)
	if device := requestctx.DeviceID(r.Context()); device != "" {
		return "device:" + host + "/" + device
	}
	return "ip:" + host
}

// limiterKey buckets rate limits. Guests share one budget per client
// address whatever device id they send.
func limiterKey(r *http.Request) string {
	if uid := callerUID(r); uid != "" {
		return "user:" + uid
	}
	return "ip:" + clientHost(r)
}

func callerUID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil {
		return identity.UID
	}
	return ""
}

// clientHost is the caller address as set by middleware.RealIP.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allowRequest applies limiter to the caller and writes 429 with
// Retry-After when the caller is over its budget.
func allowRequest(w http.ResponseWriter, r *http.Request, limiter rateLimiter) bool {
	if limiter == nil {
		return true
	}
	ok, retryAfter := limiter.Allow(limiterKey(r))
	if ok {
		return true
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests, try again later", http.StatusTooManyRequests))
	return false
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusServiceUnavailable))
}

// writeStoreError maps repository failures that no service sentinel claimed.
func writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case repositories.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "storage is temporarily unavailable", http.StatusServiceUnavailable))
	case repositories.IsNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case repositories.IsConflict(err):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "resource changed concurrently", http.StatusConflict))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
