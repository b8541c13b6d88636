// Package api exposes the cart and wishlist over JSON. Both lists share
// one handler; the mounted path and the list kind of the backing service
// decide the semantics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/middleware"
)

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError writes the standard {error:{code,message}} envelope and
// logs the failure with request context.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := statusForCode(code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{"error", err.Error(), "code", code, "status", status}
	if status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	respondJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func statusForCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body into dst, mapping malformed input
// to an EINVALID domain error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.WrapError(err, domain.EINVALID, "api.decode", "Malformed JSON request body")
	}
	return nil
}

// requestLogger is a convenience accessor used by handlers that log
// outside the error path.
func requestLogger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	return middleware.GetLogger(r.Context(), fallback)
}
