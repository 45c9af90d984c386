package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/clipforge/editpipeline/internal/ids"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

type requestIDKey struct{}

// requestIDFromContext returns the request ID stashed by requestContext, or
// "" if called outside a request (e.g. from a test that builds a handler
// directly).
func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// requestContext assigns (or reuses) X-Request-Id, echoes it back on the
// response, and logs method/path/status/elapsed once the handler returns,
// mirroring RequestContextMiddleware.
func requestContext(logger telemetry.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = ids.New()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			w.Header().Set("X-Request-Id", requestID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			elapsed := time.Since(started)

			if logger != nil {
				logger.Info(ctx, "request completed",
					"method", r.Method, "path", r.URL.Path,
					"status", ww.Status(), "elapsed_ms", elapsed.Milliseconds(),
					"request_id", requestID)
			}
		})
	}
}

// requireToken rejects requests against /api/v1/* with an invalid or
// missing token, unless no tokens are configured (unauthenticated mode).
// Accepts either X-Api-Token or "Authorization: Bearer <token>".
func (s *Server) requireToken(next http.Handler) http.Handler {
	tokens := s.Config.APITokens()
	if len(tokens) == 0 {
		return next
	}
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		allowed[t] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := r.Header.Get("X-Api-Token")
		if candidate == "" {
			candidate = bearerToken(r.Header.Get("Authorization"))
		}
		if _, ok := allowed[candidate]; !ok {
			writeError(w, r, errUnauthorized("invalid api token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(authorization string) string {
	parts := strings.Fields(authorization)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
