package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/ledger"
)

type consistencyResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ledger.Report
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Verify(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !report.OK() {
		writeJSON(w, http.StatusInternalServerError, consistencyResponse{
			OK:     false,
			Error:  string(errs.KindInvariant),
			Report: report,
		})
		return
	}
	writeJSON(w, http.StatusOK, consistencyResponse{OK: true, Report: report})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if err := h.db.Ping(); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: database connection failed"))
		return
	}

	if h.broker != nil && !h.broker.IsHealthy() {
		h.log.Error("RabbitMQ health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: rabbitmq connection failed"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}
