package ports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

// writeErrorResponse maps store errors to status codes and writes a JSON
// body. Returns the status code for logging.
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, responseError error) int {
	logger := logging.FromContext(ctx)

	// Unknown error: default to 500
	statusCode := http.StatusInternalServerError

	if errors.Is(responseError, store.ErrNotFound) {
		statusCode = http.StatusNotFound
	} else if errors.Is(responseError, store.ErrReadPending) {
		statusCode = http.StatusConflict
	} else if errors.Is(responseError, store.ErrReleased) || errors.Is(responseError, store.ErrAborted) {
		statusCode = http.StatusGone
	} else if errors.Is(responseError, store.ErrUnavailable) || errors.Is(responseError, store.ErrStoreClosed) {
		statusCode = http.StatusServiceUnavailable
	} else if errors.Is(responseError, context.DeadlineExceeded) {
		statusCode = http.StatusGatewayTimeout
	}

	body, err := json.Marshal(errorResponse{
		Success: false,
		Cause:   responseError.Error(),
	})
	if err != nil {
		logger.Error("failed to marshal error response", "error", err.Error())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
	return statusCode
}
