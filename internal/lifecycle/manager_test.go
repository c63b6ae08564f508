package lifecycle

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestManager_ClosesInReverseOrder(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var order []string
	for _, name := range []string{"pool", "store", "metrics"} {
		name := name
		m.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"metrics", "store", "pool"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("close order = %v, want %v", order, want)
	}
}

func TestManager_AttemptsEveryResource(t *testing.T) {
	m := NewManager(zerolog.Nop())
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	closedC := false
	m.RegisterFunc("c", func() error { closedC = true; return nil })
	m.RegisterFunc("b", func() error { return errB })
	m.RegisterFunc("a", func() error { return errA })

	err := m.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected joined errors, got %v", err)
	}
	if !closedC {
		t.Error("resource after a failure was not closed")
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m := NewManager(zerolog.Nop())
	calls := 0
	m.RegisterFunc("once", func() error { calls++; return nil })

	_ = m.Close()
	_ = m.Close()
	if calls != 1 {
		t.Errorf("resource closed %d times", calls)
	}
	if m.Len() != 0 {
		t.Errorf("expected no pending resources, got %d", m.Len())
	}
}

func TestManager_RegisterAfterClose(t *testing.T) {
	m := NewManager(zerolog.Nop())
	_ = m.Close()

	closed := false
	m.RegisterFunc("late", func() error { closed = true; return nil })
	if !closed {
		t.Error("late registration should close immediately")
	}
}

func TestManager_NilCloserIgnored(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.Register("nil", nil)
	if m.Len() != 0 {
		t.Error("nil closer should not be registered")
	}
}
