package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors_WrappedIdentity(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidPrefix", ErrInvalidPrefix},
		{"ErrEmptyFolio", ErrEmptyFolio},
		{"ErrDuplicateSerial", ErrDuplicateSerial},
	}

	for _, s := range sentinels {
		t.Run(s.name, func(t *testing.T) {
			if s.err.Error() == "" {
				t.Fatal("Sentinel error should have a message")
			}
			wrapped := fmt.Errorf("get draft INAIR-0001: %w", s.err)
			if !errors.Is(wrapped, s.err) {
				t.Errorf("errors.Is should match wrapped %s", s.name)
			}
		})
	}
}
