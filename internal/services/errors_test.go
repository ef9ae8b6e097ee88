package services_test

import (
	"errors"
	"testing"

	"songscout/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "spotify", "fetch tracks", "page 2", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "chartmetric", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "p", "op", "", nil), true},
		{"rate limited", services.Wrap(services.ErrRateLimited, "p", "op", "", nil), true},
		{"not found", services.Wrap(services.ErrNotFound, "p", "op", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "p", "op", "", nil), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable=%v, want %v", tc.name, got, tc.want)
		}
	}
}
