package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nexustechhub/mdts/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared request validator. Field names in messages
// use the json tag.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a single JSON document from the request body into dst
// and validates it. Errors are domain errors ready for ErrorResponse.
func DecodeJSON(r *http.Request, op string, dst any) error {
	if r.Body == nil {
		return domain.Invalid(op, "Request body is required")
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return domain.WrapError(err, domain.ETOOLARGE, op, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return domain.WrapError(err, domain.EINVALID, op, "Request body is not valid JSON")
		case errors.As(err, &typeErr):
			return domain.NewValidationError(op, typeErr.Field, "has the wrong type")
		default:
			return domain.WrapError(err, domain.EINVALID, op, "Request body could not be read")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}

	return ValidateStruct(op, dst)
}

// ValidateStruct runs the validator and converts failures to a
// domain.ValidationError keyed by JSON field path.
func ValidateStruct(op string, v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "request validation failed")
	}

	var out error
	for _, fe := range verrs {
		out = domain.AddFieldError(out, fieldPath(fe), fieldMessage(fe))
	}
	if ve, ok := out.(*domain.ValidationError); ok {
		ve.Op = op
	}
	return out
}

// fieldPath drops the top-level struct name from the validator namespace,
// e.g. "checkoutRequest.items[0].name" becomes "items[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "min", "max":
		unit := "characters"
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			unit = "entries"
		}
		if fe.Tag() == "min" {
			return "must have at least " + fe.Param() + " " + unit
		}
		return "must have at most " + fe.Param() + " " + unit
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
