package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/pulse/pulse-api/internal/pkg/response"
)

// Recover turns handler panics into 500 responses instead of dropped
// connections. Stack traces go to the log, never to the client.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", GetRequestID(r.Context())).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
