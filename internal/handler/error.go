package handler

import (
	"net/http"
	"strings"

	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/middleware"
	"github.com/nexustechhub/mdts/internal/telemetry"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// ErrorResponse logs err and writes it to the client. JSON clients get the
// error envelope, including per-field messages for validation errors; others
// get plain text. Internal details never reach the client.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"status", status,
	}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
		if status == http.StatusInternalServerError {
			telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
				"code":       code,
				"request_id": middleware.GetRequestID(r.Context()),
			})
		}
	} else {
		logger.Info("request rejected", attrs...)
	}

	if !acceptsJSON(r) {
		http.Error(w, message, status)
		return
	}

	JSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: message,
		Fields:  domain.GetValidationFields(err),
	}})
}

// ValidationErrorResponse writes a 400 with per-field messages. Errors that
// are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsValidationError(err) {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("validation failed", "fields", domain.GetValidationFields(err))

	JSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    domain.EINVALID,
		Message: domain.ErrorMessage(err),
		Fields:  domain.GetValidationFields(err),
	}})
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// InternalErrorResponse logs err and returns a generic 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// acceptsJSON reports whether the client should get a JSON error body.
// Everything under /api/ and /webhooks/ is JSON.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/webhooks/")
}
