// internal/application/service/conversion_service_test.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/domain/currency"
	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/api"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func newTestService(repo *mocks.MockExchangeRateRepository) *ConversionService {
	return NewConversionService(repo, currency.Default(), logger.NewJSONLogger(io.Discard, logger.ErrorLevel),
		WithClock(func() time.Time { return fixedNow }),
		WithRandSource(rand.NewSource(42)),
	)
}

func TestConvert(t *testing.T) {
	ctx := context.Background()
	usd := mocks.NewSnapshot("USD", map[entity.CurrencyCode]float64{"EUR": 0.92, "JPY": 149.123456789})

	t.Run("USD to EUR", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(usd, false, nil)
		svc := newTestService(repo)

		result, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "EUR", Amount: 100.0})

		require.NoError(t, err)
		assert.Equal(t, entity.CurrencyCode("USD"), result.From)
		assert.Equal(t, entity.CurrencyCode("EUR"), result.To)
		assert.Equal(t, 100.0, result.Amount)
		assert.Equal(t, 92.0, result.ConvertedAmount)
		assert.Equal(t, 0.92, result.ExchangeRate)
		assert.Equal(t, fixedNow, result.Timestamp)
		repo.AssertExpectations(t)
	})

	t.Run("Lower case codes and string amount", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(usd, true, nil)
		svc := newTestService(repo)

		result, err := svc.Convert(ctx, ConversionRequest{From: "usd", To: "jpy", Amount: "2.5"})

		require.NoError(t, err)
		assert.Equal(t, entity.CurrencyCode("JPY"), result.To)
		// Each figure is rounded on its own
		assert.Equal(t, 372.8086, result.ConvertedAmount)
		assert.Equal(t, 149.123457, result.ExchangeRate)
	})

	t.Run("JSON number amount", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(usd, true, nil)
		svc := newTestService(repo)

		result, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "EUR", Amount: json.Number("10")})

		require.NoError(t, err)
		assert.Equal(t, 9.2, result.ConvertedAmount)
	})

	t.Run("Zero amount is accepted", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(usd, true, nil)
		svc := newTestService(repo)

		result, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "EUR", Amount: 0.0})

		require.NoError(t, err)
		assert.Equal(t, 0.0, result.ConvertedAmount)
	})

	t.Run("Rate missing from snapshot", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(usd, true, nil)
		svc := newTestService(repo)

		_, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "GBP", Amount: 1.0})

		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		assert.ErrorIs(t, err, ErrRateUnavailable)
		assert.Contains(t, inputErr.Error(), "USD to GBP")
	})

	t.Run("Upstream failure", func(t *testing.T) {
		fetchErr := &api.FetchError{Kind: api.KindUpstreamRejected, Provider: "primary", Status: 500}
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).Return(nil, false, fetchErr)
		svc := newTestService(repo)

		_, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "EUR", Amount: 1.0})

		var upstreamErr *UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		var gotFetchErr *api.FetchError
		require.True(t, errors.As(err, &gotFetchErr))
		assert.Equal(t, 500, gotFetchErr.Status)
	})
}

func TestConvertValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		request ConversionRequest
		wantErr error
	}{
		{"Missing from", ConversionRequest{To: "EUR", Amount: 1.0}, ErrMissingFields},
		{"Missing to", ConversionRequest{From: "USD", Amount: 1.0}, ErrMissingFields},
		{"Missing amount", ConversionRequest{From: "USD", To: "EUR"}, ErrMissingFields},
		{"Blank amount", ConversionRequest{From: "USD", To: "EUR", Amount: "  "}, ErrMissingFields},
		{"Non numeric amount", ConversionRequest{From: "USD", To: "EUR", Amount: "abc"}, ErrInvalidAmount},
		{"Negative amount", ConversionRequest{From: "USD", To: "EUR", Amount: -5.0}, ErrInvalidAmount},
		{"Infinite amount", ConversionRequest{From: "USD", To: "EUR", Amount: math.Inf(1)}, ErrInvalidAmount},
		{"NaN string amount", ConversionRequest{From: "USD", To: "EUR", Amount: "NaN"}, ErrInvalidAmount},
		{"Boolean amount", ConversionRequest{From: "USD", To: "EUR", Amount: true}, ErrInvalidAmount},
		{"Unsupported from", ConversionRequest{From: "XXX", To: "EUR", Amount: 1.0}, ErrUnsupportedCurrency},
		{"Unsupported to", ConversionRequest{From: "USD", To: "ABC", Amount: 1.0}, ErrUnsupportedCurrency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mocks.MockExchangeRateRepository)
			svc := newTestService(repo)

			result, err := svc.Convert(ctx, tc.request)

			assert.Nil(t, result)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.ErrorIs(t, err, tc.wantErr)

			// Validation never reaches the rate source
			repo.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
		})
	}

	t.Run("Unsupported message lists codes", func(t *testing.T) {
		svc := newTestService(new(mocks.MockExchangeRateRepository))

		_, err := svc.Convert(ctx, ConversionRequest{From: "XXX", To: "EUR", Amount: 1.0})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "USD, EUR, GBP")
		assert.Contains(t, err.Error(), "PLN")
	})

	t.Run("Amount overflowing the converted value", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).
			Return(mocks.NewSnapshot("USD", map[entity.CurrencyCode]float64{"JPY": 150}), true, nil)
		svc := newTestService(repo)

		var result *entity.ConversionResult
		var err error
		require.NotPanics(t, func() {
			result, err = svc.Convert(ctx, ConversionRequest{From: "USD", To: "JPY", Amount: "1e307"})
		})

		assert.Nil(t, result)
		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, "Amount too large to convert", inputErr.Message)
	})
}

func TestConvertRoundTrip(t *testing.T) {
	ctx := context.Background()
	const rate = 0.92

	repo := new(mocks.MockExchangeRateRepository)
	repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).
		Return(mocks.NewSnapshot("USD", map[entity.CurrencyCode]float64{"EUR": rate}), true, nil)
	repo.On("Snapshot", mock.Anything, entity.CurrencyCode("EUR")).
		Return(mocks.NewSnapshot("EUR", map[entity.CurrencyCode]float64{"USD": 1 / rate}), true, nil)
	svc := newTestService(repo)

	for _, amount := range []float64{0.01, 1, 3.3333, 100, 12345.6789, 1e6} {
		there, err := svc.Convert(ctx, ConversionRequest{From: "USD", To: "EUR", Amount: amount})
		require.NoError(t, err)

		back, err := svc.Convert(ctx, ConversionRequest{From: "EUR", To: "USD", Amount: there.ConvertedAmount})
		require.NoError(t, err)

		assert.InEpsilon(t, amount, back.ConvertedAmount, 2e-4, "amount %v", amount)
	}
}

func TestRates(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults to USD", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).
			Return(mocks.NewSnapshot("USD", map[entity.CurrencyCode]float64{"EUR": 0.92}), true, nil)
		svc := newTestService(repo)

		result, err := svc.Rates(ctx, "")

		require.NoError(t, err)
		assert.Equal(t, entity.CurrencyCode("USD"), result.Base)
		assert.Equal(t, "2024-03-01", result.Date)
		assert.True(t, result.Cached)
		assert.Equal(t, fixedNow, result.Timestamp)
	})

	t.Run("Normalises base", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("GBP")).
			Return(mocks.NewSnapshot("GBP", map[entity.CurrencyCode]float64{"USD": 1.27}), false, nil)
		svc := newTestService(repo)

		result, err := svc.Rates(ctx, "gbp")

		require.NoError(t, err)
		assert.Equal(t, entity.CurrencyCode("GBP"), result.Base)
		assert.False(t, result.Cached)
	})

	t.Run("Unsupported base", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		svc := newTestService(repo)

		_, err := svc.Rates(ctx, "XXX")

		assert.ErrorIs(t, err, ErrUnsupportedCurrency)
		assert.Contains(t, err.Error(), "Unsupported currency: XXX")
		repo.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	})

	t.Run("Upstream failure", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Snapshot", mock.Anything, entity.CurrencyCode("USD")).
			Return(nil, false, &api.FetchError{Kind: api.KindTimeout, Provider: "primary"})
		svc := newTestService(repo)

		_, err := svc.Rates(ctx, "USD")

		var upstreamErr *UpstreamError
		assert.ErrorAs(t, err, &upstreamErr)
	})
}

func TestCurrencies(t *testing.T) {
	svc := newTestService(new(mocks.MockExchangeRateRepository))

	result := svc.Currencies()

	assert.Equal(t, 20, result.Count)
	assert.Len(t, result.Currencies, 20)
	assert.Equal(t, entity.CurrencyCode("USD"), result.Currencies[0].Code)
	assert.Equal(t, fixedNow, result.Timestamp)
}

func TestHistorical(t *testing.T) {
	ctx := context.Background()

	t.Run("Series shape", func(t *testing.T) {
		for _, days := range []int{0, 1, 7, 30, 365} {
			repo := new(mocks.MockExchangeRateRepository)
			repo.On("Peek", entity.CurrencyCode("USD")).Return(nil, false)
			svc := newTestService(repo)

			series, err := svc.Historical(ctx, "USD", "EUR", strconv.Itoa(days))

			require.NoError(t, err)
			require.Len(t, series.Points, days+1)
			assert.Equal(t, days, series.Days)
			assert.Equal(t, "2024-03-01", series.Points[len(series.Points)-1].Date)

			for i := 1; i < len(series.Points); i++ {
				prev, _ := time.Parse("2006-01-02", series.Points[i-1].Date)
				cur, _ := time.Parse("2006-01-02", series.Points[i].Date)
				assert.Equal(t, 24*time.Hour, cur.Sub(prev))
			}
			for _, p := range series.Points {
				assert.Greater(t, p.Rate, 0.0)
			}
		}
	})

	t.Run("Default period", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Peek", entity.CurrencyCode("USD")).Return(nil, false)
		svc := newTestService(repo)

		series, err := svc.Historical(ctx, "usd", "eur", "")

		require.NoError(t, err)
		assert.Len(t, series.Points, DefaultHistoricalDays+1)
		assert.Equal(t, entity.CurrencyCode("EUR"), series.To)
	})

	t.Run("Anchored on cached rate", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Peek", entity.CurrencyCode("USD")).
			Return(mocks.NewSnapshot("USD", map[entity.CurrencyCode]float64{"JPY": 150}), true)
		svc := newTestService(repo)

		series, err := svc.Historical(ctx, "USD", "JPY", "10")

		require.NoError(t, err)
		for _, p := range series.Points {
			assert.InDelta(t, 150, p.Rate, 150*historicalVolatility+1e-6)
		}
		repo.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	})

	t.Run("Random base stays in range", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		repo.On("Peek", entity.CurrencyCode("EUR")).Return(nil, false)
		svc := newTestService(repo)

		series, err := svc.Historical(ctx, "EUR", "GBP", "30")

		require.NoError(t, err)
		for _, p := range series.Points {
			assert.GreaterOrEqual(t, p.Rate, 0.5*(1-historicalVolatility)-1e-6)
			assert.Less(t, p.Rate, 2.5*(1+historicalVolatility)+1e-6)
		}
	})

	t.Run("Invalid input", func(t *testing.T) {
		svc := newTestService(new(mocks.MockExchangeRateRepository))

		_, err := svc.Historical(ctx, "USD", "XXX", "")
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)

		for _, days := range []string{"-1", "366", "abc", "1.5"} {
			_, err := svc.Historical(ctx, "USD", "EUR", days)
			assert.ErrorIs(t, err, ErrInvalidDays, "days %q", days)
		}
	})
}

func TestRoundHalfAway(t *testing.T) {
	assert.Equal(t, 1.2346, roundHalfAway(1.23455, 4))
	assert.Equal(t, -1.2346, roundHalfAway(-1.23455, 4))
	assert.Equal(t, 0.123457, roundHalfAway(0.1234565, 6))
	assert.Equal(t, 92.0, roundHalfAway(100*0.92, 4))
	assert.True(t, math.IsInf(roundHalfAway(math.Inf(1), 4), 1))
	assert.True(t, math.IsNaN(roundHalfAway(math.NaN(), 4)))
}
