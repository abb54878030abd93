package handler

import "time"

// ConvertRequest is the body of POST /api/convert. Amount may be a JSON
// number or a numeric string.
type ConvertRequest struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount interface{} `json:"amount"`
}

// ConvertResponse is returned by POST /api/convert
type ConvertResponse struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	Amount          float64   `json:"amount"`
	ConvertedAmount float64   `json:"convertedAmount"`
	ExchangeRate    float64   `json:"exchangeRate"`
	Timestamp       time.Time `json:"timestamp"`
	Server          string    `json:"server"`
}

// RatesResponse is returned by GET /api/rates
type RatesResponse struct {
	Base      string             `json:"base"`
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	Timestamp time.Time          `json:"timestamp"`
	Cached    bool               `json:"cached"`
	Server    string             `json:"server"`
}

// CurrencyResponse describes one supported currency
type CurrencyResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// CurrenciesResponse is returned by GET /api/currencies
type CurrenciesResponse struct {
	Currencies []CurrencyResponse `json:"currencies"`
	Count      int                `json:"count"`
	Timestamp  time.Time          `json:"timestamp"`
	Server     string             `json:"server"`
}

// HistoricalPointResponse is one day of a historical series
type HistoricalPointResponse struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// HistoricalResponse is returned by GET /api/historical/{from}/{to}
type HistoricalResponse struct {
	From      string                    `json:"from"`
	To        string                    `json:"to"`
	Period    string                    `json:"period"`
	Data      []HistoricalPointResponse `json:"data"`
	Timestamp time.Time                 `json:"timestamp"`
	Server    string                    `json:"server"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Server    string    `json:"server"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}
