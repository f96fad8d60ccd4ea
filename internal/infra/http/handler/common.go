// Package handler holds the HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vibescan/api/internal/infra/http/middleware"
	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
	"github.com/vibescan/api/pkg/validator"
)

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes an API error echoing the request id.
func writeError(w http.ResponseWriter, r *http.Request, apiErr *apierror.Error) {
	apiErr.WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
}

// handleValidationError converts validation errors to API errors.
func handleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		writeError(w, r, apierror.ValidationFailed("Validation failed", apiErrors))
		return
	}
	writeError(w, r, apierror.BadRequest("Validation error"))
}

// handleServiceError converts service errors to API errors. Internal
// detail goes to the log, never to the client.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, resource string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeError(w, r, apierror.NotFound(resource))
	case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrConflict):
		writeError(w, r, apierror.Conflict(resource+" already exists"))
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		writeError(w, r, apierror.BadRequest(safeMessage(err)))
	case errors.Is(err, shared.ErrInsufficientCredits):
		writeError(w, r, apierror.PaymentRequired(""))
	case errors.Is(err, shared.ErrScannerUnavailable):
		writeError(w, r, apierror.ScannerUnavailable())
	case errors.Is(err, shared.ErrUnauthorized):
		writeError(w, r, apierror.Unauthorized(""))
	case errors.Is(err, shared.ErrForbidden):
		writeError(w, r, apierror.Forbidden(""))
	default:
		log.WithContext(r.Context()).WithError(err).Error("service error")
		writeError(w, r, apierror.InternalError(err))
	}
}

// safeMessage returns a validation error's message, which wraps only
// domain sentinels and field names.
func safeMessage(err error) string {
	if err == nil {
		return "Invalid request"
	}
	return err.Error()
}

// authedUserID extracts the authenticated user id set by the auth
// middleware. Returns a zero id and writes a 401 when absent.
func authedUserID(w http.ResponseWriter, r *http.Request) (shared.ID, bool) {
	raw := middleware.GetUserID(r.Context())
	id, err := shared.ParseID(raw)
	if err != nil {
		writeError(w, r, apierror.Unauthorized(""))
		return shared.ID{}, false
	}
	return id, true
}

// pathID parses a UUID path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, raw, name string) (shared.ID, bool) {
	id, err := shared.ParseID(raw)
	if err != nil {
		writeError(w, r, apierror.BadRequest("Invalid "+name))
		return shared.ID{}, false
	}
	return id, true
}
