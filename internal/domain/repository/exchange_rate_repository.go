// Package repository internal/domain/repository/exchange_rate_repository.go
package repository

import (
	"context"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
)

// ExchangeRateRepository defines the interface for exchange rate access
type ExchangeRateRepository interface {
	// Snapshot returns the rate snapshot for a base currency and whether it was served from cache
	Snapshot(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, bool, error)

	// Peek returns a cached snapshot without ever contacting the provider
	Peek(base entity.CurrencyCode) (*entity.RateSnapshot, bool)

	// Invalidate drops the cached snapshot for a base currency
	Invalidate(base entity.CurrencyCode)
}
