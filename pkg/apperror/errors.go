package apperror

import (
	"fmt"
	"net/http"
)

// Error codes returned in the error_code field.
const (
	CodeBadSignature       = "SEC_001"
	CodeUnknownDocument    = "PAY_001"
	CodeValidation         = "PAY_002"
	CodeInvalidState       = "PAY_003"
	CodeNotFound           = "PAY_004"
	CodeGatewayUnavailable = "GW_001"
	CodeGatewayRejected    = "GW_002"
	CodeInvalidToken       = "AUTH_001"
	CodeForbidden          = "AUTH_002"
	CodeRateLimited        = "RATE_001"
	CodeInternal           = "SYS_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code          string `json:"error_code"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	HTTPStatus    int    `json:"-"`
	Err           error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithTransaction returns a copy of e tagged with the transaction it concerns.
func (e *AppError) WithTransaction(id string) *AppError {
	cp := *e
	cp.TransactionID = id
	return &cp
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ErrUnauthorized rejects a gateway callback whose signature does not verify.
func ErrUnauthorized() *AppError {
	return New(CodeBadSignature, "Invalid or missing callback signature", http.StatusUnauthorized)
}

func ErrUnknownDocument(documentType string) *AppError {
	return New(CodeUnknownDocument, fmt.Sprintf("Unknown document type %q", documentType), http.StatusBadRequest)
}

// Validation returns a PAY_002 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrGatewayUnavailable covers timeouts, transport failures and 5xx answers.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(CodeGatewayUnavailable, "Payment provider unavailable, please retry later", http.StatusServiceUnavailable, err)
}

// ErrGatewayRejected reports a provider refusal. The provider's own wording
// is kept on the wrapped error only.
func ErrGatewayRejected(err error) *AppError {
	return Wrap(CodeGatewayRejected, "Payment was declined by the provider", http.StatusUnprocessableEntity, err)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Insufficient permissions", http.StatusForbidden)
}

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
