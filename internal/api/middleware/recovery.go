package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/logger"
)

var panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ecm",
	Subsystem: "http",
	Name:      "panics_recovered_total",
	Help:      "Handler panics turned into 500 responses.",
})

// Recovery turns a handler panic into a logged 500 INTERNAL_ERROR.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			panicsRecovered.Inc()
			requestID := GetRequestID(r.Context())
			logger.FromContext(r.Context()).Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Stack("stack"),
			)
			response.Err(w, http.StatusInternalServerError, response.CodeInternal, "An unexpected error occurred", requestID)
		}()
		next.ServeHTTP(w, r)
	})
}
