package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	headerTenant  = "X-Tenant-ID"
	headerUser    = "X-User-ID"
	defaultTenant = "default"
)

type identityKey struct{}

// Identity is the caller a request acts for.
type Identity struct {
	TenantID string
	UserID   string
}

// identify reads the caller from headers. Browsers cannot set headers on a
// WebSocket handshake, so the tenant and user query parameters are accepted
// as a fallback.
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			TenantID: firstNonEmpty(r.Header.Get(headerTenant), r.URL.Query().Get("tenant")),
			UserID:   firstNonEmpty(r.Header.Get(headerUser), r.URL.Query().Get("user")),
		}
		if id.UserID == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+headerUser+" header")
			return
		}
		if id.TenantID == "" {
			id.TenantID = defaultTenant
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
