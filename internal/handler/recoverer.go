package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
)

// Recoverer turns a panic into a 500 with the standard error body.
func Recoverer(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	log = logging.OrNop(log).Named("recoverer")
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
				log.Errorw("Recovered from panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				RespondError(w, log, appErrors.NewUnexpected(fmt.Errorf("%v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
