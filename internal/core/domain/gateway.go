package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GatewayErrorKind classifies a failed provider call.
type GatewayErrorKind string

const (
	GatewayErrorTimeout     GatewayErrorKind = "timeout"
	GatewayErrorUnavailable GatewayErrorKind = "unavailable"
	GatewayErrorRejected    GatewayErrorKind = "rejected"
	GatewayErrorMalformed   GatewayErrorKind = "malformed_response"
)

// GatewayError is returned by the gateway client for every failed call.
// Body holds the raw provider response and must never reach end users.
type GatewayError struct {
	Kind       GatewayErrorKind
	Message    string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s (http %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *GatewayError) Transient() bool {
	return e.Kind == GatewayErrorTimeout || e.Kind == GatewayErrorUnavailable
}

// AsGatewayError extracts a *GatewayError from err, if any.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// PaymentLink is the provider's answer to a link creation request.
type PaymentLink struct {
	URL       string
	Reference string
	Raw       []byte
}

// ChargeAction tells the buyer what to do next after a charge was initiated.
type ChargeAction string

const (
	ChargeActionRequireOTP      ChargeAction = "REQUIRE_OTP"
	ChargeActionPendingWithCode ChargeAction = "PENDING_WITH_CODE"
)

// ChargeResult is the provider's answer to a mobile money charge.
type ChargeResult struct {
	Action    ChargeAction `json:"action"`
	Reference string       `json:"reference,omitempty"`
	DialCode  string       `json:"dial_code,omitempty"`
	Message   string       `json:"message,omitempty"`
	Raw       []byte       `json:"-"`
}

// MobileNetwork is a supported mobile money operator.
type MobileNetwork string

const (
	NetworkMTN    MobileNetwork = "mtn"
	NetworkOrange MobileNetwork = "orange"
)

var (
	ErrUnsupportedNetwork = errors.New("unsupported mobile network")
	ErrInvalidPhone       = errors.New("invalid phone number")
)

// ParseNetwork accepts the common spellings of the supported operators.
func ParseNetwork(raw string) (MobileNetwork, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mtn", "mtn_momo", "momo":
		return NetworkMTN, nil
	case "orange", "orange_money", "om":
		return NetworkOrange, nil
	default:
		return "", ErrUnsupportedNetwork
	}
}

// NormalizePhone strips separators and the Cameroon country code, returning
// the 9 digit local number the provider expects.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && b.Len() == 0:
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()
	for _, prefix := range []string{"00237", "237"} {
		if len(digits) == 9+len(prefix) && strings.HasPrefix(digits, prefix) {
			digits = digits[len(prefix):]
			break
		}
	}
	if len(digits) != 9 || digits[0] != '6' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// MaskPhone keeps the last three digits for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}

// GatewayOutcome is the internal meaning of a provider status string.
type GatewayOutcome string

const (
	OutcomeCompleted    GatewayOutcome = "completed"
	OutcomeFailed       GatewayOutcome = "failed"
	OutcomeCancelled    GatewayOutcome = "cancelled"
	OutcomeProcessing   GatewayOutcome = "processing"
	OutcomeUnrecognized GatewayOutcome = "unrecognized"
)

var providerStatuses = map[string]GatewayOutcome{
	"complete":    OutcomeCompleted,
	"completed":   OutcomeCompleted,
	"success":     OutcomeCompleted,
	"successful":  OutcomeCompleted,
	"succeeded":   OutcomeCompleted,
	"paid":        OutcomeCompleted,
	"failed":      OutcomeFailed,
	"failure":     OutcomeFailed,
	"error":       OutcomeFailed,
	"rejected":    OutcomeFailed,
	"declined":    OutcomeFailed,
	"expired":     OutcomeFailed,
	"canceled":    OutcomeCancelled,
	"cancelled":   OutcomeCancelled,
	"abandoned":   OutcomeCancelled,
	"pending":     OutcomeProcessing,
	"initiated":   OutcomeProcessing,
	"processing":  OutcomeProcessing,
	"in_progress": OutcomeProcessing,
	"submitted":   OutcomeProcessing,
}

// NormalizeGatewayStatus maps every provider spelling onto one outcome.
// Unknown strings yield OutcomeUnrecognized, never a success.
func NormalizeGatewayStatus(raw string) GatewayOutcome {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if outcome, ok := providerStatuses[key]; ok {
		return outcome
	}
	return OutcomeUnrecognized
}

// Status returns the transaction status the outcome drives towards.
func (o GatewayOutcome) Status() TransactionStatus {
	switch o {
	case OutcomeCompleted:
		return TransactionStatusCompleted
	case OutcomeFailed:
		return TransactionStatusFailed
	case OutcomeCancelled:
		return TransactionStatusCancelled
	default:
		return TransactionStatusProcessing
	}
}

// CallbackEvent is a parsed gateway webhook.
type CallbackEvent struct {
	// EventID is only taken from explicit event id fields, never from a
	// generic "id" that may name the payment itself.
	EventID       string
	Reference     string
	TransactionID string
	RawStatus     string
	Outcome       GatewayOutcome
	Amount        *decimal.Decimal
	Currency      string
	Message       string
	Payload       []byte
}

// DedupKey identifies this delivery for replay detection. The normalized
// outcome is part of the key so a status change is never a duplicate, even
// if a provider reuses the event id. Empty when the event carries no id.
func (e *CallbackEvent) DedupKey() string {
	if e.EventID == "" {
		return ""
	}
	return e.EventID + ":" + string(e.Outcome)
}

// ServiceHealth is the result of a provider liveness probe.
type ServiceHealth string

const (
	ServiceOperational ServiceHealth = "operational"
	ServiceDegraded    ServiceHealth = "degraded"
	ServiceUnreachable ServiceHealth = "unreachable"
)
