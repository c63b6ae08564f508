package metrics

import (
	"time"
)

// MeasureStoreOperation starts a timer for a store call. The returned function records
// the elapsed time with the given result label.
// Usage:
//
//	done := metrics.MeasureStoreOperation(m, "create_transaction", "dynamodb")
//	err := ...
//	done(resultLabel(err))
func MeasureStoreOperation(m *Metrics, operation, backend string) func(result string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	return func(result string) {
		m.ObserveStoreOperation(operation, backend, result, time.Since(start))
	}
}
