package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, CodeBadRequest},
		{Unauthorized(""), http.StatusUnauthorized, CodeUnauthorized},
		{Forbidden(""), http.StatusForbidden, CodeForbidden},
		{NotFound("Scan"), http.StatusNotFound, CodeNotFound},
		{Conflict("dup"), http.StatusConflict, CodeConflict},
		{PaymentRequired(""), http.StatusPaymentRequired, CodePaymentRequired},
		{InternalError(errors.New("boom")), http.StatusInternalServerError, CodeInternalError},
		{ScannerUnavailable(), http.StatusServiceUnavailable, CodeScannerUnavailable},
		{RateLimitExceeded(), http.StatusTooManyRequests, CodeRateLimitExceeded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.Status, string(tt.code))
		assert.Equal(t, tt.code, tt.err.Code)
		assert.NotEmpty(t, tt.err.Message)
	}

	assert.Equal(t, "Scan not found", NotFound("Scan").Message)
	assert.Equal(t, "No scan credits remaining", PaymentRequired("").Message)
}

func TestErrorInterface(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrap(inner, http.StatusInternalServerError, CodeInternalError, "An internal error occurred")

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, inner)
}

func TestWriteJSONWithRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound("Scan").WriteJSONWithRequestID(rec, "req-123")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, CodeNotFound, resp.Code)
	assert.Equal(t, "req-123", resp.RequestID)
}

func TestInternalErrorNeverLeaksDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(fmt.Errorf("pq: password authentication failed")).WriteJSON(rec)

	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "An internal error occurred")
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	apiErr := BadRequest("nope")
	assert.Same(t, apiErr, FromError(apiErr))
	assert.Same(t, apiErr, FromError(fmt.Errorf("wrapped: %w", apiErr)))

	converted := FromError(errors.New("plain"))
	assert.Equal(t, CodeInternalError, converted.Code)
}

func TestValidationErrors(t *testing.T) {
	var verrs ValidationErrors
	assert.False(t, verrs.HasErrors())

	verrs.Add("project_name", "is required")
	require.True(t, verrs.HasErrors())

	apiErr := verrs.ToAPIError()
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, CodeValidationFailed, apiErr.Code)
	assert.Equal(t, verrs, apiErr.Details)
}
