package txupdate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/CedrosPay/txupdate/internal/errors"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// Body field names.
const (
	FieldPaymentID = "razorpay_payment_id"
	FieldOrderID   = "razorpay_order_id"
	FieldStatus    = "status"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldUserID    = "user_id"
	FieldCourseID  = "course_id"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldSignature = "razorpay_signature"
)

// requiredFields are checked for presence in this order.
var requiredFields = []string{FieldPaymentID, FieldOrderID, FieldStatus}

// optionalStringFields must be JSON strings when present and non-null.
var optionalStringFields = []string{FieldCurrency, FieldUserID, FieldCourseID, FieldEmail, FieldPhone, FieldSignature}

// notification is a validated request body.
type notification struct {
	PaymentID string
	OrderID   string
	Status    transaction.Status
	Amount    *transaction.Amount
	Currency  string
	UserID    string
	CourseID  string
	Email     string
	Phone     string
	Signature string
}

// parseNotification decodes and validates body. The first failing check wins.
func parseNotification(body []byte) (notification, *apperrors.Error) {
	fields, appErr := decodeObject(body)
	if appErr != nil {
		return notification{}, appErr
	}

	for _, name := range requiredFields {
		if isMissing(fields[name]) {
			return notification{}, apperrors.New(apperrors.ErrCodeMissingField, "Missing required field: "+name)
		}
	}

	var n notification
	var err *apperrors.Error
	if n.PaymentID, err = stringField(fields, FieldPaymentID); err != nil {
		return notification{}, err
	}
	if n.OrderID, err = stringField(fields, FieldOrderID); err != nil {
		return notification{}, err
	}

	rawStatus := fields[FieldStatus]
	var status string
	if json.Unmarshal(rawStatus, &status) != nil {
		return notification{}, invalidStatus(rawStatus)
	}
	parsed, ok := transaction.ParseStatus(status)
	if !ok {
		return notification{}, invalidStatus(rawStatus)
	}
	n.Status = parsed

	if raw, present := fields[FieldAmount]; present && !isNull(raw) {
		amount, parseErr := transaction.ParseAmountJSON(raw)
		if parseErr != nil {
			return notification{}, apperrors.Wrap(apperrors.ErrCodeInvalidAmount, "Invalid amount value", parseErr).
				With("details", "Amount must be a valid number")
		}
		n.Amount = &amount
	}

	optional := make(map[string]string, len(optionalStringFields))
	for _, name := range optionalStringFields {
		raw, present := fields[name]
		if !present || isNull(raw) {
			continue
		}
		value, err := stringField(fields, name)
		if err != nil {
			return notification{}, err
		}
		optional[name] = value
	}
	n.Currency = optional[FieldCurrency]
	n.UserID = optional[FieldUserID]
	n.CourseID = optional[FieldCourseID]
	n.Email = optional[FieldEmail]
	n.Phone = optional[FieldPhone]
	n.Signature = optional[FieldSignature]

	return n, nil
}

// record builds the persisted form; both timestamps come from now.
func (n notification) record(tenantID string, now time.Time) transaction.Record {
	currency := n.Currency
	if currency == "" {
		currency = transaction.DefaultCurrency
	}
	rec := transaction.Record{
		TransactionID: n.PaymentID,
		TenantID:      tenantID,
		PaymentID:     n.PaymentID,
		OrderID:       n.OrderID,
		Status:        n.Status,
		Amount:        n.Amount,
		Currency:      currency,
		UserID:        n.UserID,
		CourseID:      n.CourseID,
		Email:         n.Email,
		Phone:         n.Phone,
		Signature:     n.Signature,
	}
	rec.Stamp(now)
	return rec
}

// decodeObject parses body as a JSON object. An empty body is an empty object.
func decodeObject(body []byte) (map[string]json.RawMessage, *apperrors.Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, notAnObject()
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidJSON, "Invalid JSON format", err).
			With("details", err.Error())
	}
	if fields == nil {
		// literal null
		return nil, notAnObject()
	}
	return fields, nil
}

func notAnObject() *apperrors.Error {
	return apperrors.New(apperrors.ErrCodeInvalidJSON, "Invalid JSON format").
		With("details", "request body must be a JSON object")
}

func invalidStatus(raw json.RawMessage) *apperrors.Error {
	return apperrors.New(apperrors.ErrCodeInvalidStatus, "Invalid status value").
		With("received_status", json.RawMessage(bytes.TrimSpace(raw)))
}

// stringField returns fields[name] as a string or an invalid_field error.
func stringField(fields map[string]json.RawMessage, name string) (string, *apperrors.Error) {
	var value string
	if err := json.Unmarshal(fields[name], &value); err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeInvalidField, "Invalid field type: "+name, err).
			With("details", fmt.Sprintf("%s must be a string", name))
	}
	return value, nil
}

// isMissing treats absent, null and "" as missing.
func isMissing(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || isNull(raw) || string(raw) == `""`
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
