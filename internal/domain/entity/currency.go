package entity

import "strings"

// CurrencyCode is an ISO 4217 style three letter currency identifier
type CurrencyCode string

// ParseCurrencyCode trims and upper-cases raw input. It does not check registry membership.
func ParseCurrencyCode(raw string) CurrencyCode {
	return CurrencyCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// String returns the code as a plain string
func (c CurrencyCode) String() string {
	return string(c)
}

// CurrencyInfo holds display metadata for a supported currency
type CurrencyInfo struct {
	Code   CurrencyCode `json:"code"`
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
}
