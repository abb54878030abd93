// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockRateFetcher mocks the RateFetcher interface
type MockRateFetcher struct {
	mock.Mock
}

func (m *MockRateFetcher) FetchRates(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Error(1)
}

// MockExchangeRateRepository mocks the ExchangeRateRepository interface
type MockExchangeRateRepository struct {
	mock.Mock
}

func (m *MockExchangeRateRepository) Snapshot(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, bool, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Bool(1), args.Error(2)
}

func (m *MockExchangeRateRepository) Peek(base entity.CurrencyCode) (*entity.RateSnapshot, bool) {
	args := m.Called(base)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Bool(1)
}

func (m *MockExchangeRateRepository) Invalidate(base entity.CurrencyCode) {
	m.Called(base)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}

// NewSnapshot builds a snapshot for tests
func NewSnapshot(base entity.CurrencyCode, rates map[entity.CurrencyCode]float64) *entity.RateSnapshot {
	return &entity.RateSnapshot{
		Base:  base,
		Date:  "2024-03-01",
		Rates: rates,
	}
}
