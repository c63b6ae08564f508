package txupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/CedrosPay/txupdate/internal/errors"
	"github.com/CedrosPay/txupdate/internal/logger"
	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/storage"
	"github.com/CedrosPay/txupdate/internal/transaction"
	"github.com/CedrosPay/txupdate/pkg/responders"
)

// Outcome labels recorded per handled request.
const (
	OutcomeStored    = "stored"
	OutcomePreflight = "preflight"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "store_failed"
	OutcomePanic     = "panic"
)

const (
	storeFailureDetails = "The transaction could not be persisted. Please retry later."
	internalDetails     = "An unexpected error occurred"
)

// Handler validates payment notifications and records them with a single
// conditional write. It holds no per-request state and is safe for concurrent use.
type Handler struct {
	store         storage.Store
	allowedOrigin string
	requireTenant bool
	log           zerolog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithAllowedOrigin sets the Access-Control-Allow-Origin value. Empty keeps "*".
func WithAllowedOrigin(origin string) Option {
	return func(h *Handler) {
		if origin != "" {
			h.allowedOrigin = origin
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// WithMetrics records outcome counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithTenantHeaderRequired rejects requests that lack X-Tenant-Id.
func WithTenantHeaderRequired(required bool) Option {
	return func(h *Handler) {
		h.requireTenant = required
	}
}

// New constructs a Handler backed by store.
func New(store storage.Store, opts ...Option) *Handler {
	h := &Handler{
		store:         store,
		allowedOrigin: "*",
		log:           zerolog.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one request. It always returns a response; panics from the
// store or elsewhere become a 500 internal_error.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	log := h.requestLogger(ctx)
	outcome := ""
	paymentStatus := ""

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("transaction.panic")
			outcome = OutcomePanic
			resp = h.errorResponse(apperrors.Wrap(apperrors.ErrCodeInternalError, "Internal server error", fmt.Errorf("panic: %v", r)).
				With("details", internalDetails))
		}
		h.metrics.ObserveUpdate(outcome, paymentStatus, time.Since(start))
	}()

	if req.IsPreflight() {
		outcome = OutcomePreflight
		return Response{StatusCode: http.StatusOK, Headers: h.CORSHeaders()}
	}

	tenantID := req.Header(TenantHeader)
	if h.requireTenant && tenantID == "" {
		appErr := apperrors.New(apperrors.ErrCodeMissingHeader, "Missing required header").
			With("details", TenantHeader+" header is required")
		outcome = string(appErr.Code)
		log.Warn().Str("code", string(appErr.Code)).Msg("transaction.validation_failed")
		return h.errorResponse(appErr)
	}

	n, appErr := parseNotification(req.Body)
	if appErr != nil {
		outcome = string(appErr.Code)
		log.Warn().
			Str("code", string(appErr.Code)).
			Str("reason", appErr.Message).
			Str("tenant_id", tenantID).
			Msg("transaction.validation_failed")
		return h.errorResponse(appErr)
	}
	paymentStatus = string(n.Status)

	rec := n.record(tenantID, h.now())
	log = log.With().
		Str("transaction_id", rec.TransactionID).
		Str("order_id", rec.OrderID).
		Str("status", string(rec.Status)).
		Logger()
	log.Debug().
		Str("tenant_id", rec.TenantID).
		Str("user_id", rec.UserID).
		Str("course_id", rec.CourseID).
		Str("email", logger.RedactEmail(rec.Email)).
		Str("phone", logger.RedactPhone(rec.Phone)).
		Str("signature", logger.TruncateSecret(rec.Signature)).
		Str("currency", rec.Currency).
		Msg("transaction.received")

	err := h.store.CreateTransaction(ctx, rec)
	switch {
	case err == nil:
		outcome = OutcomeStored
		log.Info().Msg("transaction.stored")
		return h.jsonResponse(http.StatusOK, successBody{
			Message:       "Transaction updated successfully",
			TransactionID: rec.TransactionID,
			Status:        rec.Status,
			Timestamp:     rec.UpdatedAt,
		})
	case errors.Is(err, storage.ErrDuplicate):
		outcome = OutcomeDuplicate
		log.Info().
			Bool("retryable", apperrors.ErrCodeDuplicateTransaction.IsRetryable()).
			Msg("transaction.duplicate")
		return h.errorResponse(apperrors.Wrap(apperrors.ErrCodeDuplicateTransaction, "Transaction already exists", err).
			With("transaction_id", rec.TransactionID))
	default:
		outcome = OutcomeFailed
		log.Error().
			Err(err).
			Bool("retryable", apperrors.ErrCodeStorageError.IsRetryable()).
			Msg("transaction.store_failed")
		return h.errorResponse(apperrors.Wrap(apperrors.ErrCodeStorageError, "Failed to store transaction", err).
			With("details", storeFailureDetails))
	}
}

// successBody is the 200 payload; field order is fixed.
type successBody struct {
	Message       string             `json:"message"`
	TransactionID string             `json:"transaction_id"`
	Status        transaction.Status `json:"status"`
	Timestamp     string             `json:"timestamp"`
}

func (h *Handler) requestLogger(ctx context.Context) zerolog.Logger {
	if l := logger.FromContext(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if id := logger.GetRequestID(ctx); id != "" {
		return h.log.With().Str("request_id", id).Logger()
	}
	return h.log
}

// CORSHeaders returns a fresh copy of the headers sent on every response.
func (h *Handler) CORSHeaders() map[string]string {
	return map[string]string{
		HeaderAllowOrigin:  h.allowedOrigin,
		HeaderAllowMethods: AllowedMethods,
		HeaderAllowHeaders: AllowedHeaders,
	}
}

func (h *Handler) errorResponse(appErr *apperrors.Error) Response {
	return h.jsonResponse(appErr.Status(), appErr.Body())
}

func (h *Handler) jsonResponse(status int, payload any) Response {
	headers := h.CORSHeaders()
	headers[HeaderContentType] = "application/json"

	body, err := responders.Marshal(payload)
	if err != nil {
		// Payloads are built from strings and raw JSON, so this only fires on a programming error.
		h.log.Error().Err(err).Msg("transaction.encode_failed")
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"error":"Internal server error"}`,
		}
	}
	return Response{StatusCode: status, Headers: headers, Body: string(body)}
}
