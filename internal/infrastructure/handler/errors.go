package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/forex-exchange-service/internal/application/service"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/api"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
)

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	resp := ErrorResponse{
		Error:     message,
		Message:   description,
		Status:    statusCode,
		RequestID: requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError maps service errors onto HTTP responses. Upstream
// details are logged and never returned to the client.
func handleServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	var inputErr *service.InputError
	var upstreamErr *service.UpstreamError

	switch {
	case errors.As(err, &inputErr):
		title := "Invalid request"
		switch {
		case errors.Is(err, service.ErrUnsupportedCurrency):
			title = "Invalid currency"
		case errors.Is(err, service.ErrRateUnavailable):
			title = "Exchange rate not available"
		case errors.Is(err, service.ErrInvalidAmount):
			title = "Invalid amount"
		case errors.Is(err, service.ErrMissingFields):
			title = "Missing required fields"
		case errors.Is(err, service.ErrInvalidDays):
			title = "Invalid days"
		}
		sendErrorResponse(w, log, title, inputErr.Error(), http.StatusBadRequest, requestID)

	case errors.As(err, &upstreamErr):
		fields := map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		}
		var fetchErr *api.FetchError
		if errors.As(err, &fetchErr) {
			fields["kind"] = string(fetchErr.Kind)
			fields["provider"] = fetchErr.Provider
			fields["upstream_status"] = fetchErr.Status
			fields["detail"] = fetchErr.Detail
		}
		log.Error("Exchange rate service unavailable", fields)
		sendErrorResponse(w, log, "Service temporarily unavailable",
			"The exchange rate service is temporarily unavailable. Please try again later.",
			http.StatusServiceUnavailable, requestID)

	default:
		log.Error("Unexpected error", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}
