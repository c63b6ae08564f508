package transaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount is not a finite decimal number.
var ErrInvalidAmount = errors.New("transaction: invalid amount")

// Amount is a monetary value held as an exact decimal.
// It never passes through float64; "1000.10" is stored as the number 1000.1.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// Storable bounds across backends: Decimal128 keeps 34 significant digits and
// a DynamoDB number spans 1e-130 to 1e125.
const (
	maxAmountDigits   = 34
	maxAmountExponent = 125
	minAmountExponent = -130

	// maxAmountText caps the raw text before parsing; any storable value
	// written out in full at the smallest exponent still fits.
	maxAmountText = 256
)

// ParseAmount parses a decimal string such as "1000", "10.50" or "1e3".
// Values outside the storable range are rejected with ErrInvalidAmount.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountText {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if err := checkRange(d); err != nil {
		return Amount{}, fmt.Errorf("%w: %q", err, raw)
	}
	return Amount{Decimal: d}, nil
}

// checkRange enforces at most 34 significant digits and a magnitude between
// 1e-130 and 1e125. It works on the coefficient and exponent so it never
// expands the number.
func checkRange(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	digits := strings.TrimLeft(d.Coefficient().String(), "-")
	exp := int64(d.Exponent())

	trimmed := strings.TrimRight(digits, "0")
	exp += int64(len(digits) - len(trimmed))
	if len(trimmed) > maxAmountDigits {
		return fmt.Errorf("%w: more than %d significant digits", ErrInvalidAmount, maxAmountDigits)
	}

	// exponent of the leading digit in scientific notation
	magnitude := exp + int64(len(trimmed)) - 1
	if magnitude > maxAmountExponent || magnitude < minAmountExponent {
		return fmt.Errorf("%w: magnitude out of range", ErrInvalidAmount)
	}
	return nil
}

// ParseAmountJSON accepts a JSON number or a JSON string holding a number.
// Booleans, objects, arrays and null are rejected.
func ParseAmountJSON(raw json.RawMessage) (Amount, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Amount{}, ErrInvalidAmount
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return ParseAmount(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return ParseAmount(string(raw))
	default:
		return Amount{}, fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
}

// MarshalJSON renders the amount as a bare JSON number with no rounding.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts the same inputs as ParseAmountJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAmountJSON(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalDynamoDBAttributeValue stores the amount as a DynamoDB number.
func (a Amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue reads a DynamoDB number (or string) attribute.
func (a *Amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		parsed, err := ParseAmount(v.Value)
		if err != nil {
			return err
		}
		*a = parsed
	case *types.AttributeValueMemberS:
		parsed, err := ParseAmount(v.Value)
		if err != nil {
			return err
		}
		*a = parsed
	case *types.AttributeValueMemberNULL:
		*a = Amount{}
	default:
		return fmt.Errorf("%w: unsupported attribute type %T", ErrInvalidAmount, av)
	}
	return nil
}
