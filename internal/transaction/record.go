// Package transaction defines the persisted payment-status record.
package transaction

import "time"

// TimestampLayout is ISO-8601 UTC with microsecond precision and a literal Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DefaultCurrency is applied when a notification carries no currency.
const DefaultCurrency = "INR"

// Record is one payment status update keyed by TransactionID.
// TransactionID always equals PaymentID.
type Record struct {
	TransactionID string  `json:"transaction_id" dynamodbav:"transaction_id"`
	TenantID      string  `json:"tenant_id,omitempty" dynamodbav:"tenant_id,omitempty"`
	PaymentID     string  `json:"razorpay_payment_id" dynamodbav:"razorpay_payment_id"`
	OrderID       string  `json:"razorpay_order_id" dynamodbav:"razorpay_order_id"`
	Status        Status  `json:"status" dynamodbav:"status"`
	Amount        *Amount `json:"amount,omitempty" dynamodbav:"amount,omitempty"`
	Currency      string  `json:"currency" dynamodbav:"currency"`
	UserID        string  `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	CourseID      string  `json:"course_id,omitempty" dynamodbav:"course_id,omitempty"`
	Email         string  `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone         string  `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Signature     string  `json:"razorpay_signature,omitempty" dynamodbav:"razorpay_signature,omitempty"`
	CreatedAt     string  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt     string  `json:"updated_at" dynamodbav:"updated_at"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Stamp sets CreatedAt and UpdatedAt to the same instant.
func (r *Record) Stamp(now time.Time) {
	ts := FormatTimestamp(now)
	r.CreatedAt = ts
	r.UpdatedAt = ts
}
