// Package service internal/application/service/conversion_service.go
package service

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/domain/currency"
	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/domain/repository"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBase is used by Rates when no base currency is given
	DefaultBase entity.CurrencyCode = "USD"
	// DefaultHistoricalDays is the period used when days is omitted
	DefaultHistoricalDays = 30
	// MaxHistoricalDays bounds the synthetic series
	MaxHistoricalDays = 365

	amountPlaces = 4
	ratePlaces   = 6

	historicalVolatility = 0.05
)

// ConversionRequest is the input of Convert. Amount may be a float64,
// json.Number, string or integer; anything else is rejected.
type ConversionRequest struct {
	From   string
	To     string
	Amount interface{}
}

// RatesResult is a full snapshot lookup
type RatesResult struct {
	Base      entity.CurrencyCode
	Date      string
	Rates     map[entity.CurrencyCode]float64
	Timestamp time.Time
	Cached    bool
}

// CurrenciesResult lists the supported currencies
type CurrenciesResult struct {
	Currencies []entity.CurrencyInfo
	Count      int
	Timestamp  time.Time
}

// ConversionService converts amounts and serves rate lookups
type ConversionService struct {
	rates    repository.ExchangeRateRepository
	registry *currency.Registry
	logger   logger.Logger
	metrics  *metrics.Metrics

	now func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures a ConversionService
type Option func(*ConversionService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ConversionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandSource sets the source used for synthetic historical series
func WithRandSource(src rand.Source) Option {
	return func(s *ConversionService) {
		if src != nil {
			s.rand = rand.New(src)
		}
	}
}

// WithMetrics attaches conversion metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ConversionService) { s.metrics = m }
}

// NewConversionService creates a new conversion service
func NewConversionService(rates repository.ExchangeRateRepository, registry *currency.Registry, log logger.Logger, opts ...Option) *ConversionService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if registry == nil {
		registry = currency.Default()
	}

	s := &ConversionService{
		rates:    rates,
		registry: registry,
		logger:   log,
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC
func (s *ConversionService) Now() time.Time {
	return s.now().UTC()
}

// Registry returns the registry used for validation
func (s *ConversionService) Registry() *currency.Registry {
	return s.registry
}

// Convert validates the request, resolves the rate for its base currency and
// computes the converted amount
func (s *ConversionService) Convert(ctx context.Context, req ConversionRequest) (*entity.ConversionResult, error) {
	requestID := middleware.GetRequestID(ctx)

	from, to, amount, err := s.validate(req)
	if err != nil {
		s.logger.Warn("Rejected conversion request", map[string]interface{}{
			"request_id": requestID,
			"from":       req.From,
			"to":         req.To,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.logger.Info("Converting amount", map[string]interface{}{
		"request_id": requestID,
		"from":       from,
		"to":         to,
		"amount":     amount,
	})

	snap, cached, err := s.resolve(ctx, from)
	if err != nil {
		return nil, err
	}

	rate, ok := snap.Rate(to)
	if !ok {
		s.logger.Warn("Rate missing from snapshot", map[string]interface{}{
			"request_id": requestID,
			"from":       from,
			"to":         to,
		})
		return nil, newInputError(ErrRateUnavailable, "Exchange rate not available for %s to %s", from, to)
	}

	converted := amount * rate
	if math.IsInf(converted, 0) || math.IsNaN(converted) {
		return nil, newInputError(ErrInvalidAmount, "Amount too large to convert")
	}

	result := &entity.ConversionResult{
		From:            from,
		To:              to,
		Amount:          amount,
		ConvertedAmount: roundHalfAway(converted, amountPlaces),
		ExchangeRate:    roundHalfAway(rate, ratePlaces),
		Timestamp:       s.now().UTC(),
	}

	s.metrics.ObserveConversion(from.String(), to.String())
	s.logger.Info("Conversion completed", map[string]interface{}{
		"request_id":       requestID,
		"from":             from,
		"to":               to,
		"amount":           amount,
		"exchange_rate":    result.ExchangeRate,
		"converted_amount": result.ConvertedAmount,
		"cached":           cached,
	})

	return result, nil
}

// Rates returns the full snapshot for base, USD when base is empty
func (s *ConversionService) Rates(ctx context.Context, base string) (*RatesResult, error) {
	code := DefaultBase
	if strings.TrimSpace(base) != "" {
		code = entity.ParseCurrencyCode(base)
	}

	if !s.registry.IsSupported(code.String()) {
		return nil, s.unsupported(base)
	}

	snap, cached, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	return &RatesResult{
		Base:      snap.Base,
		Date:      snap.Date,
		Rates:     snap.Rates,
		Timestamp: s.now().UTC(),
		Cached:    cached,
	}, nil
}

// Currencies lists every supported currency in registration order
func (s *ConversionService) Currencies() CurrenciesResult {
	list := s.registry.List()
	return CurrenciesResult{
		Currencies: list,
		Count:      len(list),
		Timestamp:  s.now().UTC(),
	}
}

// Historical builds a synthetic daily series of days+1 points ending today.
// It is anchored on the cached rate for the pair when one exists and never
// contacts the provider.
func (s *ConversionService) Historical(ctx context.Context, from, to, days string) (*entity.HistoricalSeries, error) {
	requestID := middleware.GetRequestID(ctx)

	fromCode := entity.ParseCurrencyCode(from)
	toCode := entity.ParseCurrencyCode(to)
	if !s.registry.IsSupported(fromCode.String()) || !s.registry.IsSupported(toCode.String()) {
		return nil, newInputError(ErrUnsupportedCurrency,
			"Unsupported currency pair %s/%s. Supported currencies: %s", from, to, s.registry.SupportedList())
	}

	n := DefaultHistoricalDays
	if strings.TrimSpace(days) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(days))
		if err != nil || parsed < 0 || parsed > MaxHistoricalDays {
			return nil, newInputError(ErrInvalidDays, "Invalid days %q. Must be an integer between 0 and %d", days, MaxHistoricalDays)
		}
		n = parsed
	}

	anchored := false
	var baseRate float64
	if snap, ok := s.rates.Peek(fromCode); ok {
		if rate, ok := snap.Rate(toCode); ok {
			baseRate = rate
			anchored = true
		}
	}

	s.randMu.Lock()
	defer s.randMu.Unlock()

	if !anchored {
		baseRate = 0.5 + s.rand.Float64()*2
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	points := make([]entity.HistoricalPoint, 0, n+1)
	for i := n; i >= 0; i-- {
		variation := (s.rand.Float64() - 0.5) * 2 * historicalVolatility
		points = append(points, entity.HistoricalPoint{
			Date: today.AddDate(0, 0, -i).Format("2006-01-02"),
			Rate: roundHalfAway(baseRate*(1+variation), ratePlaces),
		})
	}

	s.logger.Debug("Generated historical series", map[string]interface{}{
		"request_id": requestID,
		"from":       fromCode,
		"to":         toCode,
		"days":       n,
		"anchored":   anchored,
	})

	return &entity.HistoricalSeries{
		From:   fromCode,
		To:     toCode,
		Days:   n,
		Points: points,
	}, nil
}

func (s *ConversionService) validate(req ConversionRequest) (entity.CurrencyCode, entity.CurrencyCode, float64, error) {
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" || isMissing(req.Amount) {
		return "", "", 0, newInputError(ErrMissingFields, "Missing required fields: from, to, amount")
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return "", "", 0, newInputError(ErrInvalidAmount, "Invalid amount. Must be a non-negative number")
	}

	from := entity.ParseCurrencyCode(req.From)
	to := entity.ParseCurrencyCode(req.To)
	if !s.registry.IsSupported(from.String()) || !s.registry.IsSupported(to.String()) {
		return "", "", 0, newInputError(ErrUnsupportedCurrency,
			"Unsupported currency. Supported currencies: %s", s.registry.SupportedList())
	}

	return from, to, amount, nil
}

func (s *ConversionService) unsupported(code string) error {
	return newInputError(ErrUnsupportedCurrency,
		"Unsupported currency: %s. Supported currencies: %s", code, s.registry.SupportedList())
}

// resolve is the ResolveRate step shared by Convert and Rates
func (s *ConversionService) resolve(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, bool, error) {
	snap, cached, err := s.rates.Snapshot(ctx, base)
	if err != nil {
		s.logger.Error("Failed to resolve exchange rates", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"base":       base,
			"error":      err.Error(),
		})
		return nil, false, &UpstreamError{Err: err}
	}
	return snap, cached, nil
}

func isMissing(v interface{}) bool {
	switch a := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(a) == ""
	case json.Number:
		return a == ""
	}
	return false
}

func parseAmount(v interface{}) (float64, error) {
	var f float64
	switch a := v.(type) {
	case float64:
		f = a
	case float32:
		f = float64(a)
	case int:
		f = float64(a)
	case int64:
		f = float64(a)
	case json.Number:
		parsed, err := a.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, ErrInvalidAmount
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// roundHalfAway rounds v to places decimals, halves away from zero
func roundHalfAway(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
