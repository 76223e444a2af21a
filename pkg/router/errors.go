package router

import (
	"errors"
	"fmt"
)

// ErrNoProviderAvailable means no provider passed selection at all.
var ErrNoProviderAvailable = errors.New("no provider available")

// CredentialMissingError marks a provider excluded at construction
// because its credential is absent. It is a selection-time exclusion,
// not a runtime dispatch failure.
type CredentialMissingError struct {
	Provider string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("provider %s has no credential configured", e.Provider)
}

// CircuitOpenError means the health tracker marked the provider
// unhealthy and the dispatcher skipped the network call.
type CircuitOpenError struct {
	Provider string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("provider %s is unhealthy, circuit open", e.Provider)
}

// RetriesExhaustedError means the primary provider failed through its
// whole retry budget and no fallback candidate remained.
type RetriesExhaustedError struct {
	Provider string
	Model    string
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted for %s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// FallbackError is the terminal failure: the single fallback hop also
// failed. It carries the provider/model that last failed.
type FallbackError struct {
	Provider string
	Model    string
	Err      error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback to %s/%s failed: %v", e.Provider, e.Model, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}
