package transaction

// Status is the payment outcome reported by the gateway.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ParseStatus accepts exactly "success" or "failed" (case-sensitive).
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusSuccess, StatusFailed:
		return Status(raw), true
	default:
		return "", false
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
