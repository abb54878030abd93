package entity

import (
	"time"
)

// RateSnapshot is the full set of exchange rates for a base currency at one point in time.
// A snapshot is never modified once built; a new fetch produces a new snapshot.
type RateSnapshot struct {
	Base       CurrencyCode             `json:"base"`
	Date       string                   `json:"date"`
	Rates      map[CurrencyCode]float64 `json:"rates"`
	ObservedAt time.Time                `json:"observed_at"`
}

// Rate returns the rate from the snapshot base to the given currency
func (s *RateSnapshot) Rate(to CurrencyCode) (float64, bool) {
	if s == nil {
		return 0, false
	}
	rate, ok := s.Rates[to]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Clone returns a deep copy of the snapshot
func (s *RateSnapshot) Clone() *RateSnapshot {
	if s == nil {
		return nil
	}
	rates := make(map[CurrencyCode]float64, len(s.Rates))
	for code, rate := range s.Rates {
		rates[code] = rate
	}
	return &RateSnapshot{
		Base:       s.Base,
		Date:       s.Date,
		Rates:      rates,
		ObservedAt: s.ObservedAt,
	}
}

// ConversionResult is the outcome of converting an amount between two currencies
type ConversionResult struct {
	From            CurrencyCode `json:"from"`
	To              CurrencyCode `json:"to"`
	Amount          float64      `json:"amount"`
	ConvertedAmount float64      `json:"convertedAmount"`
	ExchangeRate    float64      `json:"exchangeRate"`
	Timestamp       time.Time    `json:"timestamp"`
}

// HistoricalPoint is a single day of a historical rate series
type HistoricalPoint struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// HistoricalSeries is a daily rate series for a currency pair, oldest first
type HistoricalSeries struct {
	From   CurrencyCode      `json:"from"`
	To     CurrencyCode      `json:"to"`
	Days   int               `json:"days"`
	Points []HistoricalPoint `json:"data"`
}
