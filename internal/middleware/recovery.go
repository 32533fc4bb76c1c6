package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/rs/zerolog/log"
)

// Recovery middleware recovers from panics and answers with a failed envelope
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				log.Error().
					Interface("error", err).
					Str("path", r.URL.Path).
					Str("request_id", result.RequestID(r.Context())).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered")

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, result.Fail[any](
					result.CodeInternal,
					"internal server error",
					nil,
					result.NewMetadata(r.Context(), timeNow(), ""),
				))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
