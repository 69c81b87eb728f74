// Package handler holds the HTTP handlers. Access control has already run by
// the time a handler is invoked; handlers read the caller from gate.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/api/validation"
)

const (
	maxBodyBytes = 1 << 20
	timeLayout   = "2006-01-02T15:04:05Z"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// decodeJSON decodes the request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// pathID parses a numeric path parameter, answering 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, errs := validation.ParseID(name, chi.URLParam(r, name))
	if len(errs) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

func validationFailed(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}
