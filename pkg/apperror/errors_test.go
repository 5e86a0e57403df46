package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Unknown document", http.StatusBadRequest),
			expected: "[PAY_001] Unknown document",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_WithTransaction(t *testing.T) {
	base := ErrGatewayUnavailable(nil)
	tagged := base.WithTransaction("tx-1")

	assert.Equal(t, "tx-1", tagged.TransactionID)
	assert.Empty(t, base.TransactionID, "original must not be mutated")
	assert.Equal(t, base.Code, tagged.Code)
}

func TestPurchaseErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Unauthorized", ErrUnauthorized(), "SEC_001", 401},
		{"UnknownDocument", ErrUnknownDocument("x"), "PAY_001", 400},
		{"Validation", Validation("bad"), "PAY_002", 400},
		{"InvalidState", ErrInvalidState("nope"), "PAY_003", 409},
		{"NotFound", ErrNotFound("Transaction"), "PAY_004", 404},
		{"GatewayUnavailable", ErrGatewayUnavailable(nil), "GW_001", 503},
		{"GatewayRejected", ErrGatewayRejected(nil), "GW_002", 422},
		{"InvalidToken", ErrInvalidToken(), "AUTH_001", 401},
		{"Forbidden", ErrForbidden(), "AUTH_002", 403},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.True(t, errors.Is(internal, inner))
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Transaction")
	assert.Contains(t, err.Message, "Transaction")
	assert.Equal(t, "PAY_004", err.Code)
}

func TestUnknownDocumentMentionsIdentifier(t *testing.T) {
	assert.Contains(t, ErrUnknownDocument("tax_code").Message, "tax_code")
}
