package email

// ============================================================================
// EMAIL ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.

const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
)

// ============================================================================
// EMAIL ERROR TYPE
// ============================================================================

// EmailError represents an email-specific error with a code and message.
type EmailError struct {
	Code    string
	Message string
}

func (e *EmailError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *EmailError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *EmailError) ErrorMessage() string {
	return e.Message
}

func newEmailError(code, message string) *EmailError {
	return &EmailError{Code: code, Message: message}
}

var (
	// ErrNoRecipient is returned when a receipt has no customer email.
	ErrNoRecipient = newEmailError(codeInvalid, "Receipt has no recipient email address")

	// ErrTemplateRender is returned when the receipt template fails to execute.
	ErrTemplateRender = newEmailError(codeInternal, "Failed to render email template")
)
