package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	// Verify that all error variables are defined
	errorTests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidOrder", ErrInvalidOrder, "invalid order"},
		{"ErrInsufficientFunds", ErrInsufficientFunds, "insufficient funds"},
		{"ErrInsufficientHoldings", ErrInsufficientHoldings, "insufficient holdings"},
		{"ErrInvalidSnapshot", ErrInvalidSnapshot, "invalid snapshot"},
		{"ErrNoSnapshot", ErrNoSnapshot, "no snapshot"},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("Error %s is nil", tt.name)
			}

			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message %q, got %q", tt.msg, tt.err.Error())
			}

			// Wrapped errors must still match
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("Error %s does not match through wrapping", tt.name)
			}
		})
	}
}
