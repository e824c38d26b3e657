package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/tax"
)

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "not found error",
			err:            domain.NotFound("receipt.get", "receipt", "NTH-1"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   domain.ENOTFOUND,
			expectedMsg:    "receipt not found: NTH-1",
		},
		{
			name:           "invalid error",
			err:            domain.Invalid("receipt.get", "receipt ID is required"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.EINVALID,
			expectedMsg:    "receipt ID is required",
		},
		{
			name:           "tax error",
			err:            tax.ErrNoItems,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.EINVALID,
			expectedMsg:    "items array is required",
		},
		{
			name:           "unavailable dependency",
			err:            domain.Unavailable("checkout.session", "Online payment is not configured"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   domain.EUNAVAILABLE,
			expectedMsg:    "Online payment is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Accept", "application/json")
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			env := decodeError(t, rec)
			assert.Equal(t, tt.expectedCode, env.Error.Code)
			assert.Equal(t, tt.expectedMsg, env.Error.Message)
		})
	}
}

func TestErrorResponse_PlainText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.NotFound("receipt.get", "receipt", "NTH-1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "receipt not found: NTH-1", strings.TrimSpace(rec.Body.String()))
}

func TestErrorResponse_InternalHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/receipts/NTH-1", nil)
	rec := httptest.NewRecorder()

	err := domain.Internal(errors.New("dial tcp 192.168.1.100:5432: connection refused"), "receipt.get", "database error")
	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "An internal error occurred. Please try again later.", env.Error.Message)
	assert.NotContains(t, env.Error.Message, "192.168")
}

func TestErrorResponse_ValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", nil)
	rec := httptest.NewRecorder()

	err := domain.NewValidationError("checkout.session", "success_url", "is required")
	err = domain.AddFieldError(err, "cancel_url", "is required")

	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, env.Error.Code)
	assert.Equal(t, map[string]string{"success_url": "is required", "cancel_url": "is required"}, env.Error.Fields)
}

func TestValidationErrorResponse_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	err := domain.NewValidationError("receipt.issue", "order.customer_email", "must be a valid email address")
	ValidationErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, env.Error.Code)
	assert.Equal(t, "order.customer_email: must be a valid email address", env.Error.Message)
	assert.Len(t, env.Error.Fields, 1)
}

func TestValidationErrorResponse_NonValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, domain.NotFound("receipt.get", "receipt", "123"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvenienceResponses(t *testing.T) {
	t.Run("NotFoundResponse", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NotFoundResponse(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, domain.ENOTFOUND, decodeError(t, rec).Error.Code)
	})

	t.Run("InternalErrorResponse", func(t *testing.T) {
		rec := httptest.NewRecorder()
		InternalErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/api/test", nil), nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAcceptsJSON(t *testing.T) {
	tests := []struct {
		name        string
		accept      string
		contentType string
		path        string
		expected    bool
	}{
		{name: "application/json in Accept", accept: "application/json", expected: true},
		{name: "application/json with charset in Accept", accept: "application/json; charset=utf-8", expected: true},
		{name: "application/json in Content-Type", contentType: "application/json", expected: true},
		{name: "api path", path: "/api/vat/config", expected: true},
		{name: "webhook path", path: "/webhooks/stripe", expected: true},
		{name: "text/html Accept", accept: "text/html", path: "/health"},
		{name: "no headers", path: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = "/test"
			}

			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			assert.Equal(t, tt.expected, acceptsJSON(req))
		})
	}
}
