// Package currency holds the static registry of supported currencies
package currency

import (
	"errors"
	"strings"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
)

// ErrCurrencyNotFound is returned when a code is not in the registry
var ErrCurrencyNotFound = errors.New("currency not found")

// Registry is a read-only set of supported currencies kept in registration order.
// It is safe for concurrent use because it is never modified after construction.
type Registry struct {
	ordered []entity.CurrencyInfo
	byCode  map[entity.CurrencyCode]entity.CurrencyInfo
}

// NewRegistry builds a registry from the given currencies. Codes are upper-cased
// and later duplicates are ignored.
func NewRegistry(infos ...entity.CurrencyInfo) *Registry {
	r := &Registry{
		ordered: make([]entity.CurrencyInfo, 0, len(infos)),
		byCode:  make(map[entity.CurrencyCode]entity.CurrencyInfo, len(infos)),
	}

	for _, info := range infos {
		info.Code = entity.ParseCurrencyCode(string(info.Code))
		if _, exists := r.byCode[info.Code]; exists || info.Code == "" {
			continue
		}
		r.byCode[info.Code] = info
		r.ordered = append(r.ordered, info)
	}

	return r
}

// IsSupported reports whether the code, after normalisation, is registered
func (r *Registry) IsSupported(code string) bool {
	_, ok := r.byCode[entity.ParseCurrencyCode(code)]
	return ok
}

// Describe returns the metadata for a code
func (r *Registry) Describe(code string) (entity.CurrencyInfo, error) {
	info, ok := r.byCode[entity.ParseCurrencyCode(code)]
	if !ok {
		return entity.CurrencyInfo{}, ErrCurrencyNotFound
	}
	return info, nil
}

// List returns all currencies in registration order
func (r *Registry) List() []entity.CurrencyInfo {
	out := make([]entity.CurrencyInfo, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Codes returns all registered codes in registration order
func (r *Registry) Codes() []entity.CurrencyCode {
	out := make([]entity.CurrencyCode, len(r.ordered))
	for i, info := range r.ordered {
		out[i] = info.Code
	}
	return out
}

// SupportedList renders the codes as "USD, EUR, ..." for error messages
func (r *Registry) SupportedList() string {
	codes := make([]string, len(r.ordered))
	for i, info := range r.ordered {
		codes[i] = string(info.Code)
	}
	return strings.Join(codes, ", ")
}

// Len returns the number of registered currencies
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Default returns the registry of currencies served by the exchange API
func Default() *Registry {
	return NewRegistry(
		entity.CurrencyInfo{Code: "USD", Name: "US Dollar", Symbol: "$"},
		entity.CurrencyInfo{Code: "EUR", Name: "Euro", Symbol: "€"},
		entity.CurrencyInfo{Code: "GBP", Name: "British Pound", Symbol: "£"},
		entity.CurrencyInfo{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
		entity.CurrencyInfo{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$"},
		entity.CurrencyInfo{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
		entity.CurrencyInfo{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF"},
		entity.CurrencyInfo{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥"},
		entity.CurrencyInfo{Code: "INR", Name: "Indian Rupee", Symbol: "₹"},
		entity.CurrencyInfo{Code: "KRW", Name: "South Korean Won", Symbol: "₩"},
		entity.CurrencyInfo{Code: "BRL", Name: "Brazilian Real", Symbol: "R$"},
		entity.CurrencyInfo{Code: "RUB", Name: "Russian Ruble", Symbol: "₽"},
		entity.CurrencyInfo{Code: "ZAR", Name: "South African Rand", Symbol: "R"},
		entity.CurrencyInfo{Code: "MXN", Name: "Mexican Peso", Symbol: "$"},
		entity.CurrencyInfo{Code: "SGD", Name: "Singapore Dollar", Symbol: "S$"},
		entity.CurrencyInfo{Code: "HKD", Name: "Hong Kong Dollar", Symbol: "HK$"},
		entity.CurrencyInfo{Code: "NOK", Name: "Norwegian Krone", Symbol: "kr"},
		entity.CurrencyInfo{Code: "SEK", Name: "Swedish Krona", Symbol: "kr"},
		entity.CurrencyInfo{Code: "DKK", Name: "Danish Krone", Symbol: "kr"},
		entity.CurrencyInfo{Code: "PLN", Name: "Polish Zloty", Symbol: "zł"},
	)
}
