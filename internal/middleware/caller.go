package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const CallerIDKey contextKey = "caller_id"

// CallerHeader carries the id of the calling provider or patient app
const CallerHeader = "X-Caller-ID"

// CallerIDFromHeader stores the optional X-Caller-ID header in the context.
// Authentication happens upstream. Handlers fall back to the caller id when
// a request omits the ordering provider, radiologist or granting provider,
// so it ends up as the actor of the resulting audit entries.
func CallerIDFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller != "" {
			r = r.WithContext(context.WithValue(r.Context(), CallerIDKey, caller))
		}
		next.ServeHTTP(w, r)
	})
}

// CallerID extracts the caller id from context
func CallerID(ctx context.Context) string {
	caller, _ := ctx.Value(CallerIDKey).(string)
	return caller
}
