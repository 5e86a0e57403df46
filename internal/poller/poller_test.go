package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns statuses in order, repeating the last one.
type scriptedFetcher struct {
	statuses []domain.TransactionStatus
	errs     map[int]error
	calls    atomic.Int32
}

func (f *scriptedFetcher) Fetch(_ context.Context, id uuid.UUID) (*Snapshot, error) {
	n := int(f.calls.Add(1))
	if err, ok := f.errs[n]; ok {
		return nil, err
	}
	i := n - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return &Snapshot{ID: id, Status: f.statuses[i]}, nil
}

func newTestPoller(f StatusFetcher, attempts int) *Poller {
	return New(f, time.Millisecond, attempts, zerolog.Nop())
}

func TestPoller_StopsOnTerminal(t *testing.T) {
	f := &scriptedFetcher{statuses: []domain.TransactionStatus{
		domain.TransactionStatusPending,
		domain.TransactionStatusProcessing,
		domain.TransactionStatusCompleted,
	}}
	p := newTestPoller(f, 10)
	var seen []domain.TransactionStatus
	p.OnUpdate = func(_ int, s *Snapshot) { seen = append(seen, s.Status) }

	snap, err := p.Wait(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, snap.Status)
	assert.Equal(t, int32(3), f.calls.Load())
	assert.Len(t, seen, 3)
}

func TestPoller_FailedAndCancelledAreTerminal(t *testing.T) {
	for _, st := range []domain.TransactionStatus{domain.TransactionStatusFailed, domain.TransactionStatusCancelled} {
		f := &scriptedFetcher{statuses: []domain.TransactionStatus{st}}
		snap, err := newTestPoller(f, 5).Wait(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, st, snap.Status)
		assert.Equal(t, int32(1), f.calls.Load())
	}
}

func TestPoller_TimesOutAfterMaxAttempts(t *testing.T) {
	f := &scriptedFetcher{statuses: []domain.TransactionStatus{domain.TransactionStatusAwaitingAuthorization}}

	snap, err := newTestPoller(f, 4).Wait(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPollTimeout)
	require.NotNil(t, snap)
	assert.Equal(t, domain.TransactionStatusAwaitingAuthorization, snap.Status)
	assert.Equal(t, int32(4), f.calls.Load())
}

func TestPoller_TransientErrorsAreRetried(t *testing.T) {
	f := &scriptedFetcher{
		statuses: []domain.TransactionStatus{domain.TransactionStatusCompleted},
		errs:     map[int]error{1: errors.New("connection reset"), 2: errors.New("503")},
	}

	snap, err := newTestPoller(f, 5).Wait(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, snap.Status)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestPoller_NotFoundStopsImmediately(t *testing.T) {
	f := &scriptedFetcher{errs: map[int]error{1: ErrNotFound}}

	_, err := newTestPoller(f, 5).Wait(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestPoller_HonoursContext(t *testing.T) {
	f := &scriptedFetcher{statuses: []domain.TransactionStatus{domain.TransactionStatusPending}}
	p := New(f, 50*time.Millisecond, 100, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx, uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, f.calls.Load(), int32(5))
}

func TestNew_Defaults(t *testing.T) {
	p := New(nil, 0, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, p.Interval)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
}

func TestHTTPStatusFetcher(t *testing.T) {
	id := uuid.New()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1/transactions/"+id.String(), r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if hits.Load() == 1 {
			_, _ = w.Write([]byte(`{"data":{"id":"` + id.String() + `","status":"processing","dial_code":"*126#"},"request_id":"r1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"` + id.String() + `","status":"failed","failure_reason":"Solde insuffisant"},"request_id":"r2"}`))
	}))
	defer srv.Close()

	f := NewHTTPStatusFetcher(srv.URL+"/", "tok", srv.Client())

	snap, err := f.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusProcessing, snap.Status)
	assert.Equal(t, "*126#", snap.DialCode)

	final, err := newTestPoller(f, 3).Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, final.Status)
	assert.Equal(t, "Solde insuffisant", final.FailureReason)
}

func TestHTTPStatusFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		body   string
		target error
		substr string
	}{
		{"not found", http.StatusNotFound, `{"error_code":"PAY_004","message":"transaction not found"}`, ErrNotFound, ""},
		{"server error", http.StatusInternalServerError, `{"error_code":"SYS_001","message":"Internal server error"}`, nil, "Internal server error"},
		{"unknown status", http.StatusOK, `{"data":{"status":"refunded"}}`, nil, "unknown status"},
		{"no data", http.StatusOK, `{"request_id":"x"}`, nil, "no data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPStatusFetcher(srv.URL, "", nil).Fetch(context.Background(), uuid.New())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.substr != "" {
				assert.Contains(t, err.Error(), tt.substr)
			}
		})
	}
}
