package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lexpay/config"
	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const maxResponseBody = 1 << 20

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.GatewayClient against the provider's REST API.
// Every URL is {base_url}/{public_key}/...; the private key only travels in the
// Authorization header.
type Client struct {
	http          HTTPDoer
	sigSvc        ports.SignatureService
	baseURL       string
	publicKey     string
	privateKey    string
	webhookSecret string
	callbackURL   string
	returnURL     string
	linkTimeout   time.Duration
	chargeTimeout time.Duration
	healthTimeout time.Duration
	maxRetries    uint64
	retryWait     time.Duration
	log           zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

// WithRetryWait sets the initial backoff between attempts.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, sigSvc ports.SignatureService, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{},
		sigSvc:        sigSvc,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:     cfg.PublicKey,
		privateKey:    cfg.PrivateKey,
		webhookSecret: cfg.WebhookSecret,
		callbackURL:   cfg.CallbackURL,
		returnURL:     cfg.ReturnURL,
		linkTimeout:   orDefault(cfg.LinkTimeout, 30*time.Second),
		chargeTimeout: orDefault(cfg.ChargeTimeout, 45*time.Second),
		healthTimeout: orDefault(cfg.HealthTimeout, 5*time.Second),
		maxRetries:    cfg.MaxRetries,
		retryWait:     orDefault(cfg.RetryWait, 500*time.Millisecond),
		log:           logger.Component(log, "gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type linkRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Name        string `json:"name,omitempty"`
	CallbackURL string `json:"callback,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

// CreatePaymentLink asks the provider for a hosted payment page.
// The transaction id doubles as the provider idempotency key, so retries cannot
// create a second provider transaction.
func (c *Client) CreatePaymentLink(ctx context.Context, txn *domain.Transaction) (*domain.PaymentLink, error) {
	email := txn.Contact.Email
	if email == "" && txn.Buyer.Kind == domain.BuyerKindGuest {
		email = txn.Buyer.Ref
	}
	body := linkRequest{
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Reference:   txn.ID.String(),
		Description: "LexPay " + txn.DocumentType,
		Email:       email,
		Phone:       txn.Contact.Phone,
		Name:        txn.Contact.Name,
		CallbackURL: c.callbackURL,
		ReturnURL:   c.returnURL,
	}

	raw, err := c.postWithRetry(ctx, "payments", txn.ID.String(), body, c.linkTimeout)
	if err != nil {
		return nil, err
	}

	reference := firstString(raw, "transaction.reference", "data.reference", "reference")
	link := firstString(raw, "authorization_url", "payment_url", "data.authorization_url", "data.payment_url", "link")
	if reference == "" || link == "" {
		return nil, &domain.GatewayError{
			Kind:    domain.GatewayErrorMalformed,
			Message: "response lacks reference or payment url",
			Body:    raw,
		}
	}

	c.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("gateway_reference", reference).
		Msg("payment link created")

	return &domain.PaymentLink{URL: link, Reference: reference, Raw: raw}, nil
}

type chargeRequest struct {
	Channel string `json:"channel"`
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

// InitiateCharge pushes a mobile money charge to the buyer's handset.
func (c *Client) InitiateCharge(ctx context.Context, txn *domain.Transaction, phone string, network domain.MobileNetwork) (*domain.ChargeResult, error) {
	local, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrorRejected, Message: err.Error(), Err: err}
	}
	ref := txn.ID.String()
	if txn.GatewayReference != nil {
		ref = *txn.GatewayReference
	}

	body := chargeRequest{
		Channel: "cm." + string(network),
		Phone:   local,
		Network: string(network),
	}
	raw, err := c.postWithRetry(ctx, "payments/"+url.PathEscape(ref)+"/charge", txn.ID.String()+":charge", body, c.chargeTimeout)
	if err != nil {
		return nil, err
	}

	action := strings.ToUpper(firstString(raw, "action", "data.action", "next_action"))
	result := &domain.ChargeResult{
		Action:    domain.ChargeAction(action),
		Reference: firstString(raw, "reference", "data.reference", "transaction.reference"),
		DialCode:  firstString(raw, "code", "dial_code", "data.code", "ussd"),
		Message:   firstString(raw, "message", "data.message"),
		Raw:       raw,
	}
	switch result.Action {
	case domain.ChargeActionRequireOTP, domain.ChargeActionPendingWithCode:
	default:
		return nil, &domain.GatewayError{
			Kind:    domain.GatewayErrorMalformed,
			Message: fmt.Sprintf("unexpected charge action %q", action),
			Body:    raw,
		}
	}

	c.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("network", string(network)).
		Str("phone", domain.MaskPhone(local)).
		Str("action", action).
		Msg("charge initiated")

	return result, nil
}

// VerifyCallback checks the webhook signature over the raw body.
func (c *Client) VerifyCallback(payload []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return c.sigSvc.Verify(c.webhookSecret, payload, signature)
}

// ParseCallback extracts the fields the orchestrator needs from a webhook body.
// Providers nest the transaction under "data" for some events and not others.
func (c *Client) ParseCallback(payload []byte) (*domain.CallbackEvent, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errors.New("callback payload is not valid JSON")
	}

	ev := &domain.CallbackEvent{
		EventID:       firstString(payload, "event_id", "data.event_id"),
		Reference:     firstString(payload, "data.reference", "reference", "gateway_reference", "data.transaction.reference"),
		TransactionID: firstString(payload, "transaction_id", "data.merchant_reference", "merchant_reference", "data.transaction_id", "external_reference"),
		RawStatus:     firstString(payload, "status", "data.status", "data.transaction.status"),
		Currency:      firstString(payload, "currency", "data.currency"),
		Message:       firstString(payload, "message", "data.message", "reason"),
		Payload:       payload,
	}
	if ev.RawStatus == "" {
		// "payment.complete" style event names carry the status in the suffix.
		if name := firstString(payload, "event", "type"); name != "" {
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				ev.RawStatus = name[i+1:]
			}
		}
	}
	if ev.Reference == "" && ev.TransactionID == "" {
		return nil, errors.New("callback payload has no transaction reference")
	}
	if ev.RawStatus == "" {
		return nil, errors.New("callback payload has no status")
	}
	ev.Outcome = domain.NormalizeGatewayStatus(ev.RawStatus)

	if amt := firstResult(payload, "amount", "data.amount", "data.transaction.amount"); amt.Exists() {
		d, err := parseAmount(amt)
		if err != nil {
			return nil, fmt.Errorf("callback amount: %w", err)
		}
		ev.Amount = &d
	}

	return ev, nil
}

// CheckServiceHealth probes the provider without touching any transaction.
func (c *Client) CheckServiceHealth(ctx context.Context) domain.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("status"), nil)
	if err != nil {
		return domain.ServiceUnreachable
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(redact(err, c.privateKey)).Msg("gateway health probe failed")
		return domain.ServiceUnreachable
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode >= 500 {
		return domain.ServiceDegraded
	}
	if resp.StatusCode >= 300 {
		return domain.ServiceUnreachable
	}
	switch strings.ToLower(firstString(raw, "status", "data.status")) {
	case "degraded", "partial_outage", "maintenance":
		return domain.ServiceDegraded
	case "down", "major_outage":
		return domain.ServiceUnreachable
	default:
		return domain.ServiceOperational
	}
}

// postWithRetry performs one logical call, retrying only transient failures.
func (c *Client) postWithRetry(ctx context.Context, path, idempotencyKey string, body any, timeout time.Duration) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding gateway request: %w", err)
	}

	var out []byte
	attempt := 0
	op := func() error {
		attempt++
		raw, err := c.post(ctx, path, idempotencyKey, payload, timeout)
		if err == nil {
			out = raw
			return nil
		}
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) && gwErr.Transient() && ctx.Err() == nil {
			c.log.Warn().
				Int("attempt", attempt).
				Str("path", path).
				Str("kind", string(gwErr.Kind)).
				Msg("gateway call failed, will retry")
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryWait
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrorUnavailable, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(redact(err, c.privateKey))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorUnavailable,
			Message:    providerMessage(raw, resp.Status),
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorUnavailable,
			Message:    providerMessage(raw, resp.Status),
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	case resp.StatusCode >= 400:
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorRejected,
			Message:    providerMessage(raw, resp.Status),
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}

	if !gjson.ValidBytes(raw) {
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorMalformed,
			Message:    "response is not valid JSON",
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}
	// Some providers answer 200 with a business failure in the body.
	if st := strings.ToLower(firstString(raw, "status", "data.status")); st == "failed" || st == "rejected" || st == "error" {
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorRejected,
			Message:    providerMessage(raw, st),
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}
	return raw, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + url.PathEscape(c.publicKey) + "/" + path
}

func (c *Client) authorize(req *http.Request) {
	if c.privateKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.privateKey)
	}
}

func classifyTransportError(err error) *domain.GatewayError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.GatewayError{Kind: domain.GatewayErrorTimeout, Message: "provider did not answer in time", Err: err}
	}
	return &domain.GatewayError{Kind: domain.GatewayErrorUnavailable, Message: "provider unreachable", Err: err}
}

// redact strips the private key from transport errors, which may echo URLs or headers.
func redact(err error, secret string) error {
	if err == nil || secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), secret, "[REDACTED]"), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e redactedError) Error() string { return e.msg }

// Unwrap keeps errors.Is(err, context.DeadlineExceeded) working.
func (e redactedError) Unwrap() error { return e.cause }

func providerMessage(raw []byte, fallback string) string {
	if gjson.ValidBytes(raw) {
		if msg := firstString(raw, "message", "error.message", "errors.0.message", "error", "data.message"); msg != "" {
			return msg
		}
	}
	return fallback
}

func firstResult(raw []byte, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func firstString(raw []byte, paths ...string) string {
	for _, p := range paths {
		r := gjson.GetBytes(raw, p)
		if r.Type == gjson.String || r.Type == gjson.Number {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseAmount(r gjson.Result) (decimal.Decimal, error) {
	switch r.Type {
	case gjson.Number:
		return decimal.NewFromString(r.Raw)
	case gjson.String:
		return decimal.NewFromString(strings.TrimSpace(r.Str))
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported amount %s", r.Raw)
	}
}
