package storage

import (
	"fmt"

	"github.com/CedrosPay/txupdate/internal/transaction"
)

// validateRecord enforces the record invariants every backend relies on.
func validateRecord(rec transaction.Record) error {
	if rec.TransactionID == "" {
		return fmt.Errorf("transaction record requires transaction_id")
	}
	if rec.TransactionID != rec.PaymentID {
		return fmt.Errorf("transaction_id %q must equal razorpay_payment_id %q", rec.TransactionID, rec.PaymentID)
	}
	if _, ok := transaction.ParseStatus(string(rec.Status)); !ok {
		return fmt.Errorf("transaction record has invalid status %q", rec.Status)
	}
	if rec.CreatedAt == "" || rec.UpdatedAt == "" {
		return fmt.Errorf("transaction record requires created_at and updated_at")
	}
	return nil
}
