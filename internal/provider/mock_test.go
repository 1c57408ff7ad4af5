package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"converterservice/internal/rates"
)

type MockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*rates.Snapshot)
	return snap, args.Error(1)
}
