package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider returns deterministic responses for local runs and tests.
// FailFirst can be set to make the first N calls fail with Err, which
// makes retry and fallback paths reproducible.
type MockProvider struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	calls           int

	FailFirst int
	Err       error
}

// NewMockProvider creates a mock provider with a default response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockProviderWithResponses creates a mock provider with predefined responses.
func NewMockProviderWithResponses(responses map[string]string, defaultResponse string) *MockProvider {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockProvider{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (p *MockProvider) Models() []string {
	return []string{"mock-1"}
}

// Calls returns how many times Generate has been invoked.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Generate returns a deterministic response for the prompt.
func (p *MockProvider) Generate(_ context.Context, req Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.FailFirst {
		err := p.Err
		if err == nil {
			err = &ProviderError{Provider: p.Name(), Status: 503, Err: fmt.Errorf("mock failure %d", p.calls)}
		}
		return "", err
	}

	if response, ok := p.responses[req.Prompt]; ok {
		return response, nil
	}
	return fmt.Sprintf("%s\n%s", p.defaultResponse, req.Prompt), nil
}
