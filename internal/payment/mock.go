package payment

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

// MockProvider confirms every intent as soon as it is created. It stands in
// for the processor in development when no secret key is configured.
type MockProvider struct {
	mu      sync.RWMutex
	intents map[string]*Intent
}

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{intents: make(map[string]*Intent)}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// CreateIntent records a succeeded intent.
func (p *MockProvider) CreateIntent(_ context.Context, input *CreateIntentInput) (*Intent, error) {
	id := "pi_mock_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	intent := &Intent{
		ID:           id,
		AmountMinor:  input.AmountMinor,
		Currency:     strings.ToLower(input.Currency),
		Status:       StatusSucceeded,
		ClientSecret: id + "_secret_mock",
		Metadata:     maps.Clone(input.Metadata),
	}

	p.mu.Lock()
	p.intents[id] = intent
	p.mu.Unlock()

	cp := *intent
	return &cp, nil
}

// GetIntent returns a previously created intent.
func (p *MockProvider) GetIntent(_ context.Context, id string) (*Intent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	intent, ok := p.intents[id]
	if !ok {
		return nil, apperrors.NotFound("payment intent", id)
	}
	cp := *intent
	return &cp, nil
}

// SetStatus overrides an intent's status, for exercising the payment gate.
func (p *MockProvider) SetStatus(id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if intent, ok := p.intents[id]; ok {
		intent.Status = status
	}
}
