package tax

// ============================================================================
// TAX ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.

const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
)

// ============================================================================
// TAX ERROR TYPE
// ============================================================================

// TaxError represents a tax-specific error with a code and message.
// It implements the domain.Error interface pattern for consistent HTTP status mapping.
type TaxError struct {
	Code    string
	Message string
}

func (e *TaxError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *TaxError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *TaxError) ErrorMessage() string {
	return e.Message
}

// newTaxError creates a new tax error.
func newTaxError(code, message string) *TaxError {
	return &TaxError{Code: code, Message: message}
}

// ============================================================================
// TAX DOMAIN ERRORS
// ============================================================================
// The calculator never returns these directly. They are carried on a degraded
// Breakdown as its Error string and recovered with Breakdown.Err.

var (
	ErrNoItems           = newTaxError(codeInvalid, "items array is required")
	ErrCalculationFailed = newTaxError(codeInternal, "VAT calculation failed")
)

// errorFromMessage maps a breakdown error string back to its typed error.
func errorFromMessage(msg string) *TaxError {
	switch msg {
	case ErrNoItems.Message:
		return ErrNoItems
	case ErrCalculationFailed.Message:
		return ErrCalculationFailed
	}
	return newTaxError(codeInternal, msg)
}
