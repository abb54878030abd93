package service

import (
	"context"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
)

// RateFetcher defines the interface for retrieving rate snapshots from an upstream provider
type RateFetcher interface {
	// FetchRates retrieves the latest rates for a base currency
	FetchRates(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, error)
}
