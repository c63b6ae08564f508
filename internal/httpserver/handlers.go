package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CedrosPay/txupdate/internal/circuitbreaker"
	apperrors "github.com/CedrosPay/txupdate/internal/errors"
	"github.com/CedrosPay/txupdate/internal/logger"
	"github.com/CedrosPay/txupdate/internal/storage"
	"github.com/CedrosPay/txupdate/internal/txupdate"
	"github.com/CedrosPay/txupdate/pkg/responders"
)

// updateTransaction adapts an HTTP request to the transaction handler.
func (h *handlers) updateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		lg := logger.FromContext(r.Context())
		lg.Warn().Err(err).Msg("transaction.body_read_failed")
		for k, v := range h.transactions.CORSHeaders() {
			w.Header().Set(k, v)
		}
		appErr := apperrors.Wrap(apperrors.ErrCodeInvalidJSON, "Invalid JSON format", err).
			With("details", "request body could not be read")
		responders.JSON(w, appErr.Status(), appErr.Body())
		return
	}

	req := txupdate.Request{
		Method:  r.Method,
		Headers: flattenHeaders(r.Header),
		Body:    body,
	}
	writeResponse(w, h.transactions.Handle(r.Context(), req))
}

// getTransaction returns a stored record by id.
func (h *handlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")

	rec, err := h.store.GetTransaction(r.Context(), id)
	switch {
	case err == nil:
		responders.JSON(w, http.StatusOK, rec)
	case errors.Is(err, storage.ErrNotFound):
		apperrors.New(apperrors.ErrCodeNotFound, "Transaction not found").
			With("transaction_id", id).
			WriteJSON(w)
	default:
		lg := logger.FromContext(r.Context())
		lg.Error().Err(err).Str("transaction_id", id).Msg("transaction.lookup_failed")
		apperrors.WriteError(w, apperrors.ErrCodeStorageError, "Failed to load transaction")
	}
}

// health reports liveness plus backend reachability and breaker state.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now()
	status := "ok"
	statusCode := http.StatusOK

	response := map[string]any{
		"uptime":    now.Sub(serverStartTime).Round(time.Second).String(),
		"timestamp": now.UTC(),
		"backend":   h.cfg.Storage.Backend,
	}

	if h.breakers != nil {
		state := h.breakers.State(circuitbreaker.ServiceStore)
		response["store_breaker"] = state
		if state == "open" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	if h.healthCheck != nil {
		if err := h.healthCheck(ctx); err != nil {
			lg := logger.FromContext(r.Context())
			lg.Warn().Err(err).Msg("health.backend_unreachable")
			response["store_healthy"] = false
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			response["store_healthy"] = true
		}
	}

	response["status"] = status
	responders.JSON(w, statusCode, response)
}

// writeResponse copies a transport-neutral response onto w.
func writeResponse(w http.ResponseWriter, resp txupdate.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// flattenHeaders keeps the first value of each header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}
