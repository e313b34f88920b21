package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/http/respond"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recoverer turns a handler panic into the internal error envelope and logs
// the stack.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)
				if r.Header.Get("Connection") == "Upgrade" {
					return
				}
				respond.Error(w, apperr.Internal("panic recovered", fmt.Errorf("%v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
