package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/events"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMiddleware tags the request with an id, then logs and measures it
func (h *Handler) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(events.WithCorrelationID(r.Context(), requestID)))

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		h.metrics.ObserveHTTP(r.Method, route, strconv.Itoa(rec.status), elapsed)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", requestID),
		}
		switch route {
		case "/healthz", "/readyz", "/metrics":
			h.log.Debug("HTTP request", fields...)
		default:
			h.log.Info("HTTP request", fields...)
		}
	})
}

// recoverMiddleware turns a handler panic into a 500 response
func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Error:   string(errs.KindInternal),
					Message: "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
