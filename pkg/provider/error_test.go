package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"network timeout", timeoutError{}, true},
		{"wrapped network timeout", fmt.Errorf("dial: %w", timeoutError{}), true},
		{"rate limited", &ProviderError{Provider: "alpha", Status: 429}, true},
		{"server error", &ProviderError{Provider: "alpha", Status: 503}, true},
		{"marked temporary", &ProviderError{Provider: "alpha", Temporary: true}, true},
		{"bad request", &ProviderError{Provider: "alpha", Status: 400}, false},
		{"unauthorized", &ProviderError{Provider: "alpha", Status: 401}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ProviderError{Provider: "alpha", Status: 502, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProviderErrorWithoutCause(t *testing.T) {
	err := &ProviderError{Provider: "alpha", Status: 500}
	assert.Contains(t, err.Error(), "status=500")
	assert.NoError(t, err.Unwrap())
}
