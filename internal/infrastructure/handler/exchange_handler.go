// Package handler internal/infrastructure/handler/exchange_handler.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/damon-houk/forex-exchange-service/internal/application/service"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps the size of a conversion request body
const maxBodyBytes = 1 << 16

// ExchangeHandler handles HTTP requests for rates and conversions
type ExchangeHandler struct {
	service    *service.ConversionService
	logger     logger.Logger
	serverName string
}

// NewExchangeHandler creates a new exchange handler
func NewExchangeHandler(service *service.ConversionService, serverName string, log logger.Logger) *ExchangeHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ExchangeHandler{
		service:    service,
		logger:     log,
		serverName: serverName,
	}
}

// GetRates handles GET /api/rates and GET /api/rates/{base}
func (h *ExchangeHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	base := mux.Vars(r)["base"]

	h.logger.Info("Handling rates request", map[string]interface{}{
		"request_id": requestID,
		"base":       base,
	})

	result, err := h.service.Rates(r.Context(), base)
	if err != nil {
		handleServiceError(w, h.logger, err, requestID)
		return
	}

	rates := make(map[string]float64, len(result.Rates))
	for code, rate := range result.Rates {
		rates[code.String()] = rate
	}

	writeJSON(w, http.StatusOK, RatesResponse{
		Base:      result.Base.String(),
		Date:      result.Date,
		Rates:     rates,
		Timestamp: result.Timestamp,
		Cached:    result.Cached,
		Server:    h.serverName,
	})
}

// Convert handles POST /api/convert
func (h *ExchangeHandler) Convert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	// Parse request body
	var req ConvertRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body could not be parsed as valid JSON", http.StatusBadRequest, requestID)
		return
	}

	h.logger.Debug("Request parsed", map[string]interface{}{
		"request_id": requestID,
		"from":       req.From,
		"to":         req.To,
		"amount":     req.Amount,
	})

	result, err := h.service.Convert(r.Context(), service.ConversionRequest{
		From:   req.From,
		To:     req.To,
		Amount: req.Amount,
	})
	if err != nil {
		handleServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		From:            result.From.String(),
		To:              result.To.String(),
		Amount:          result.Amount,
		ConvertedAmount: result.ConvertedAmount,
		ExchangeRate:    result.ExchangeRate,
		Timestamp:       result.Timestamp,
		Server:          h.serverName,
	})
}

// GetCurrencies handles GET /api/currencies
func (h *ExchangeHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	result := h.service.Currencies()

	currencies := make([]CurrencyResponse, len(result.Currencies))
	for i, c := range result.Currencies {
		currencies[i] = CurrencyResponse{Code: c.Code.String(), Name: c.Name, Symbol: c.Symbol}
	}

	writeJSON(w, http.StatusOK, CurrenciesResponse{
		Currencies: currencies,
		Count:      result.Count,
		Timestamp:  result.Timestamp,
		Server:     h.serverName,
	})
}

// GetHistorical handles GET /api/historical/{from}/{to}?days=N
func (h *ExchangeHandler) GetHistorical(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	vars := mux.Vars(r)

	series, err := h.service.Historical(r.Context(), vars["from"], vars["to"], r.URL.Query().Get("days"))
	if err != nil {
		handleServiceError(w, h.logger, err, requestID)
		return
	}

	data := make([]HistoricalPointResponse, len(series.Points))
	for i, p := range series.Points {
		data[i] = HistoricalPointResponse{Date: p.Date, Rate: p.Rate}
	}

	writeJSON(w, http.StatusOK, HistoricalResponse{
		From:      series.From.String(),
		To:        series.To.String(),
		Period:    fmt.Sprintf("%d days", series.Days),
		Data:      data,
		Timestamp: h.service.Now(),
		Server:    h.serverName,
	})
}

// RegisterRoutes registers the exchange handler routes
func (h *ExchangeHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rates", h.GetRates).Methods("GET")
	api.HandleFunc("/rates/{base}", h.GetRates).Methods("GET")
	api.HandleFunc("/convert", h.Convert).Methods("POST")
	api.HandleFunc("/currencies", h.GetCurrencies).Methods("GET")
	api.HandleFunc("/historical/{from}/{to}", h.GetHistorical).Methods("GET")

	h.logger.Info("Exchange routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/rates",
			"GET /api/rates/{base}",
			"POST /api/convert",
			"GET /api/currencies",
			"GET /api/historical/{from}/{to}",
		},
	})
}
