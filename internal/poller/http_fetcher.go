package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// HTTPStatusFetcher reads GET {baseURL}/api/v1/transactions/:id.
type HTTPStatusFetcher struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPStatusFetcher creates a fetcher. token is sent as a bearer token when set.
func NewHTTPStatusFetcher(baseURL, token string, client *http.Client) *HTTPStatusFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStatusFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (f *HTTPStatusFetcher) Fetch(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/v1/transactions/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading status response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("status request: http %d: %s", resp.StatusCode, msg)
	}

	data := gjson.GetBytes(raw, "data")
	if !data.IsObject() {
		return nil, fmt.Errorf("status response has no data object")
	}
	status := domain.TransactionStatus(data.Get("status").String())
	if !status.Valid() {
		return nil, fmt.Errorf("status response has unknown status %q", status)
	}

	return &Snapshot{
		ID:            id,
		Status:        status,
		PaymentURL:    data.Get("payment_url").String(),
		DialCode:      data.Get("dial_code").String(),
		FailureReason: data.Get("failure_reason").String(),
		CancelReason:  data.Get("cancel_reason").String(),
	}, nil
}
