package logic

import (
	"testing"
	"time"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/session"
)

func testDay(n int) time.Time {
	return time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func noopEntry(_ *domain.Frame, _ session.Args) (*position.Order, error) {
	return nil, nil
}

func noopExit(_ *domain.Frame, _ *position.Position, _ session.Args) (*position.Order, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(Logic{Name: "beta", Entry: noopEntry, Exit: noopExit})
	r.Register(Logic{Name: "alpha", Entry: noopEntry, Exit: noopExit})

	if _, ok := r.Get("beta"); !ok {
		t.Error("registered logic not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unregistered logic found")
	}
	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List() = %v, want sorted [alpha beta]", names)
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(Logic{Name: "x", Entry: noopEntry, Exit: noopExit})
	r.Register(Logic{Name: "x", Entry: noopEntry, Exit: noopExit, Preprocess: func(*domain.Frame) error { return nil }})
	l, _ := r.Get("x")
	if l.Preprocess == nil {
		t.Error("second registration did not replace the first")
	}
}
