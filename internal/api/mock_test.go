package api

import (
	"context"

	"converterservice/internal/service"
)

// mockConverter implements service.ConverterInterface for testing.
type mockConverter struct {
	convertFunc func(ctx context.Context, req service.ConversionRequest) (*service.ConversionResult, error)
	calls       int
}

func (m *mockConverter) Convert(ctx context.Context, req service.ConversionRequest) (*service.ConversionResult, error) {
	m.calls++
	return m.convertFunc(ctx, req)
}

// mockEnqueuer implements RefreshEnqueuer for testing.
type mockEnqueuer struct {
	enqueueFunc func(ctx context.Context) (string, error)
}

func (m *mockEnqueuer) EnqueueRefresh(ctx context.Context) (string, error) {
	return m.enqueueFunc(ctx)
}
