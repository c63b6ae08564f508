package txupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/storage"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

var fixedNow = time.Date(2024, 3, 15, 9, 45, 30, 654321000, time.UTC)

// countingStore records CreateTransaction calls and can inject failures.
type countingStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	creates int
	err     error
	panicV  any
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *countingStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	s.mu.Lock()
	s.creates++
	err, panicV := s.err, s.panicV
	s.mu.Unlock()

	if panicV != nil {
		panic(panicV)
	}
	if err != nil {
		return err
	}
	return s.MemoryStore.CreateTransaction(ctx, rec)
}

func (s *countingStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func newTestHandler(store storage.Store, opts ...Option) *Handler {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, opts...)
}

func post(body string) Request {
	return Request{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(body),
	}
}

func decodeBody(t *testing.T, resp Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response body is not JSON: %v (%q)", err, resp.Body)
	}
	return body
}

func assertCORS(t *testing.T, resp Response, origin string) {
	t.Helper()
	want := map[string]string{
		HeaderAllowOrigin:  origin,
		HeaderAllowMethods: "POST,OPTIONS",
		HeaderAllowHeaders: "Content-Type,X-Tenant-Id,Authorization",
	}
	for k, v := range want {
		if got := resp.Headers[k]; got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

const validBody = `{
	"razorpay_payment_id": "pay_123",
	"razorpay_order_id": "order_456",
	"status": "success",
	"amount": "1000.10",
	"user_id": "u1",
	"course_id": "c1",
	"email": "learner@example.com",
	"phone": "+919999999999",
	"razorpay_signature": "sig_abcdef0123456789"
}`

func TestHandle_Preflight(t *testing.T) {
	for _, method := range []string{"OPTIONS", "options", "Options"} {
		t.Run(method, func(t *testing.T) {
			store := newCountingStore()
			h := newTestHandler(store)

			resp := h.Handle(context.Background(), Request{Method: method, Body: []byte("not json")})

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if resp.Body != "" {
				t.Errorf("preflight body should be empty, got %q", resp.Body)
			}
			if len(resp.Headers) != 3 {
				t.Errorf("expected exactly the CORS headers, got %v", resp.Headers)
			}
			assertCORS(t, resp, "*")
			if store.calls() != 0 {
				t.Error("preflight must not touch the store")
			}
		})
	}
}

func TestHandle_Success(t *testing.T) {
	store := newCountingStore()
	h := newTestHandler(store)

	resp := h.Handle(context.Background(), post(validBody))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, resp.Body)
	}
	assertCORS(t, resp, "*")
	if ct := resp.Headers[HeaderContentType]; ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	body := decodeBody(t, resp)
	want := map[string]any{
		"message":        "Transaction updated successfully",
		"transaction_id": "pay_123",
		"status":         "success",
		"timestamp":      "2024-03-15T09:45:30.654321Z",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%s] = %v, want %v", k, body[k], v)
		}
	}

	rec, err := store.GetTransaction(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.TransactionID != rec.PaymentID {
		t.Errorf("transaction_id %q != payment id %q", rec.TransactionID, rec.PaymentID)
	}
	if rec.Currency != "INR" {
		t.Errorf("currency = %q, want INR", rec.Currency)
	}
	if rec.CreatedAt != rec.UpdatedAt || rec.CreatedAt != "2024-03-15T09:45:30.654321Z" {
		t.Errorf("timestamps = %s / %s", rec.CreatedAt, rec.UpdatedAt)
	}
	if rec.Email != "learner@example.com" || rec.Signature != "sig_abcdef0123456789" {
		t.Errorf("optional fields not passed through: %+v", rec)
	}
	if store.calls() != 1 {
		t.Errorf("expected exactly one store write, got %d", store.calls())
	}
}

func TestHandle_AmountIsExact(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "numeric string", raw: `"1000.10"`, want: "1000.1"},
		{name: "number", raw: `1000.10`, want: "1000.1"},
		{name: "float trap", raw: `0.1`, want: "0.1"},
		{name: "integer", raw: `499`, want: "499"},
		{name: "long fraction", raw: `"12345678901234567890.123456789"`, want: "12345678901234567890.123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			h := newTestHandler(store)
			body := `{"razorpay_payment_id":"pay_amt","razorpay_order_id":"o","status":"failed","amount":` + tt.raw + `}`

			resp := h.Handle(context.Background(), post(body))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body %s", resp.StatusCode, resp.Body)
			}
			rec, _ := store.GetTransaction(context.Background(), "pay_amt")
			if rec.Amount == nil || rec.Amount.String() != tt.want {
				t.Errorf("amount = %v, want %s", rec.Amount, tt.want)
			}
		})
	}
}

func TestHandle_AmountAbsentOrNull(t *testing.T) {
	for _, body := range []string{
		`{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success"}`,
		`{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":null}`,
	} {
		store := newCountingStore()
		resp := newTestHandler(store).Handle(context.Background(), post(body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d for %s", resp.StatusCode, body)
		}
		rec, _ := store.GetTransaction(context.Background(), "p")
		if rec.Amount != nil {
			t.Errorf("expected no amount for %s, got %v", body, rec.Amount)
		}
	}
}

func TestHandle_ValidationFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
		wantExtra map[string]any
	}{
		{
			name:      "empty body",
			body:      ``,
			wantError: "Missing required field: razorpay_payment_id",
		},
		{
			name:      "whitespace body",
			body:      "  \n ",
			wantError: "Missing required field: razorpay_payment_id",
		},
		{
			name:      "missing order id",
			body:      `{"razorpay_payment_id":"p","status":"success"}`,
			wantError: "Missing required field: razorpay_order_id",
		},
		{
			name:      "first missing wins",
			body:      `{"razorpay_order_id":"o"}`,
			wantError: "Missing required field: razorpay_payment_id",
		},
		{
			name:      "null counts as missing",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":null,"status":"success"}`,
			wantError: "Missing required field: razorpay_order_id",
		},
		{
			name:      "empty string counts as missing",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":""}`,
			wantError: "Missing required field: status",
		},
		{
			name:      "presence checked before status value",
			body:      `{"razorpay_payment_id":"p","status":"pending"}`,
			wantError: "Missing required field: razorpay_order_id",
		},
		{
			name:      "invalid json",
			body:      `{"razorpay_payment_id": "p",`,
			wantError: "Invalid JSON format",
		},
		{
			name:      "array body",
			body:      `[1,2,3]`,
			wantError: "Invalid JSON format",
			wantExtra: map[string]any{"details": "request body must be a JSON object"},
		},
		{
			name:      "null body",
			body:      `null`,
			wantError: "Invalid JSON format",
			wantExtra: map[string]any{"details": "request body must be a JSON object"},
		},
		{
			name:      "non-string payment id",
			body:      `{"razorpay_payment_id":123,"razorpay_order_id":"o","status":"success"}`,
			wantError: "Invalid field type: razorpay_payment_id",
			wantExtra: map[string]any{"details": "razorpay_payment_id must be a string"},
		},
		{
			name:      "unknown status",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"pending"}`,
			wantError: "Invalid status value",
			wantExtra: map[string]any{"received_status": "pending"},
		},
		{
			name:      "status is case sensitive",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"SUCCESS"}`,
			wantError: "Invalid status value",
			wantExtra: map[string]any{"received_status": "SUCCESS"},
		},
		{
			name:      "non-string status",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":1}`,
			wantError: "Invalid status value",
			wantExtra: map[string]any{"received_status": float64(1)},
		},
		{
			name:      "non-numeric amount",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":"abc"}`,
			wantError: "Invalid amount value",
			wantExtra: map[string]any{"details": "Amount must be a valid number"},
		},
		{
			name:      "boolean amount",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":true}`,
			wantError: "Invalid amount value",
		},
		{
			name:      "object amount",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":{"v":1}}`,
			wantError: "Invalid amount value",
		},
		{
			name:      "amount exponent too large",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":1e10000000}`,
			wantError: "Invalid amount value",
			wantExtra: map[string]any{"details": "Amount must be a valid number"},
		},
		{
			name:      "amount above storable range",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":"1e126"}`,
			wantError: "Invalid amount value",
		},
		{
			name:      "amount with too many digits",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","amount":1234567890123456789012345678901234567890.5}`,
			wantError: "Invalid amount value",
		},
		{
			name:      "non-string optional field",
			body:      `{"razorpay_payment_id":"p","razorpay_order_id":"o","status":"success","email":42}`,
			wantError: "Invalid field type: email",
			wantExtra: map[string]any{"details": "email must be a string"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			h := newTestHandler(store)

			resp := h.Handle(context.Background(), post(tt.body))

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", resp.StatusCode, resp.Body)
			}
			assertCORS(t, resp, "*")
			body := decodeBody(t, resp)
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			for k, v := range tt.wantExtra {
				if body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, body[k], v)
				}
			}
			if store.calls() != 0 {
				t.Error("invalid input must not reach the store")
			}
		})
	}
}

func TestHandle_InvalidJSONCarriesParserDetails(t *testing.T) {
	resp := newTestHandler(newCountingStore()).Handle(context.Background(), post(`{bad`))
	body := decodeBody(t, resp)
	details, _ := body["details"].(string)
	if details == "" {
		t.Errorf("expected parser diagnostic in details, got %v", body)
	}
}

func TestHandle_DuplicateIsRejected(t *testing.T) {
	store := newCountingStore()
	h := newTestHandler(store)
	ctx := context.Background()

	if resp := h.Handle(ctx, post(validBody)); resp.StatusCode != http.StatusOK {
		t.Fatalf("first submission: %d %s", resp.StatusCode, resp.Body)
	}

	replay := strings.Replace(validBody, `"success"`, `"failed"`, 1)
	resp := h.Handle(ctx, post(replay))

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	assertCORS(t, resp, "*")
	body := decodeBody(t, resp)
	if body["error"] != "Transaction already exists" || body["transaction_id"] != "pay_123" {
		t.Errorf("unexpected body %v", body)
	}

	rec, _ := store.GetTransaction(ctx, "pay_123")
	if rec.Status != transaction.StatusSuccess {
		t.Errorf("original record overwritten, status %s", rec.Status)
	}
}

func TestHandle_StoreFailureHidesDiagnostic(t *testing.T) {
	store := newCountingStore()
	store.err = errors.New("AccessDeniedException: arn:aws:dynamodb:ap-south-1:123456789012:table/lms-transactions")
	h := newTestHandler(store)

	resp := h.Handle(context.Background(), post(validBody))

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	assertCORS(t, resp, "*")
	if strings.Contains(resp.Body, "arn:aws") || strings.Contains(resp.Body, "AccessDenied") {
		t.Errorf("store diagnostic leaked: %s", resp.Body)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Failed to store transaction" {
		t.Errorf("error = %v", body["error"])
	}
	if store.calls() != 1 {
		t.Errorf("expected a single write attempt, got %d", store.calls())
	}
}

func TestHandle_StoreOutcomesLogRetryable(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		event    string
		want     bool
	}{
		{name: "store failure", storeErr: errors.New("ProvisionedThroughputExceededException"), event: "transaction.store_failed", want: true},
		{name: "duplicate", storeErr: storage.ErrDuplicate, event: "transaction.duplicate", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			store := newCountingStore()
			store.err = tt.storeErr
			h := newTestHandler(store, WithLogger(zerolog.New(&buf)))

			h.Handle(context.Background(), post(validBody))

			var found bool
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var entry map[string]any
				if json.Unmarshal([]byte(line), &entry) != nil || entry["message"] != tt.event {
					continue
				}
				found = true
				if entry["retryable"] != tt.want {
					t.Errorf("retryable = %v, want %v", entry["retryable"], tt.want)
				}
			}
			if !found {
				t.Fatalf("no %s event in %s", tt.event, buf.String())
			}
		})
	}
}

func TestHandle_PanicBecomesInternalError(t *testing.T) {
	store := newCountingStore()
	store.panicV = "nil map write"
	h := newTestHandler(store)

	resp := h.Handle(context.Background(), post(validBody))

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	assertCORS(t, resp, "*")
	body := decodeBody(t, resp)
	if body["error"] != "Internal server error" {
		t.Errorf("error = %v", body["error"])
	}
	if strings.Contains(resp.Body, "nil map write") {
		t.Errorf("panic value leaked: %s", resp.Body)
	}
}

func TestHandle_TenantHeader(t *testing.T) {
	t.Run("stored when present", func(t *testing.T) {
		store := newCountingStore()
		req := post(validBody)
		req.Headers["x-tenant-id"] = "academy-1"

		resp := newTestHandler(store).Handle(context.Background(), req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		rec, _ := store.GetTransaction(context.Background(), "pay_123")
		if rec.TenantID != "academy-1" {
			t.Errorf("tenant = %q", rec.TenantID)
		}
	})

	t.Run("optional by default", func(t *testing.T) {
		resp := newTestHandler(newCountingStore()).Handle(context.Background(), post(validBody))
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("required", func(t *testing.T) {
		store := newCountingStore()
		h := newTestHandler(store, WithTenantHeaderRequired(true))

		resp := h.Handle(context.Background(), post(validBody))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "Missing required header" || body["details"] != "X-Tenant-Id header is required" {
			t.Errorf("unexpected body %v", body)
		}
		if store.calls() != 0 {
			t.Error("store must not be called")
		}
	})
}

func TestHandle_AllowedOrigin(t *testing.T) {
	h := newTestHandler(newCountingStore(), WithAllowedOrigin("https://learn.example.com"))

	for _, req := range []Request{{Method: "OPTIONS"}, post(validBody), post(`{}`)} {
		resp := h.Handle(context.Background(), req)
		assertCORS(t, resp, "https://learn.example.com")
	}
}

func TestHandle_ConcurrentDuplicates(t *testing.T) {
	store := newCountingStore()
	h := newTestHandler(store)

	const n = 16
	statuses := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses <- h.Handle(context.Background(), post(validBody)).StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for s := range statuses {
		counts[s]++
	}
	if counts[http.StatusOK] != 1 || counts[http.StatusConflict] != n-1 {
		t.Errorf("status counts = %v, want one 200 and %d 409", counts, n-1)
	}
}

func TestHandle_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := newTestHandler(newCountingStore(), WithMetrics(m))
	ctx := context.Background()

	h.Handle(ctx, post(validBody))
	h.Handle(ctx, post(validBody))
	h.Handle(ctx, post(`{}`))

	if got := promtest.ToFloat64(m.UpdatesTotal.WithLabelValues(OutcomeStored, "success")); got != 1 {
		t.Errorf("stored = %.0f", got)
	}
	if got := promtest.ToFloat64(m.UpdatesTotal.WithLabelValues(OutcomeDuplicate, "success")); got != 1 {
		t.Errorf("duplicate = %.0f", got)
	}
	if got := promtest.ToFloat64(m.UpdatesTotal.WithLabelValues("missing_field", "unknown")); got != 1 {
		t.Errorf("missing_field = %.0f", got)
	}
}

func TestRequestHeaderLookup(t *testing.T) {
	req := Request{Headers: map[string]string{"x-TENANT-id": "t1"}}
	if got := req.Header(TenantHeader); got != "t1" {
		t.Errorf("Header() = %q", got)
	}
	if got := (Request{}).Header(TenantHeader); got != "" {
		t.Errorf("nil headers = %q", got)
	}
}
