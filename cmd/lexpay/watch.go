package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/internal/poller"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func watchCommand(a *app) *cobra.Command {
	var (
		baseURL     string
		token       string
		interval    time.Duration
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "watch <transaction-id>",
		Short: "Poll a transaction until it is completed, failed or cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}
			if baseURL == "" {
				baseURL = a.cfg.Poller.BaseURL
			}
			if interval <= 0 {
				interval = a.cfg.Poller.Interval
			}
			if maxAttempts <= 0 {
				maxAttempts = a.cfg.Poller.MaxAttempts
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fetcher := poller.NewHTTPStatusFetcher(baseURL, token, &http.Client{Timeout: 10 * time.Second})
			p := poller.New(fetcher, interval, maxAttempts, a.log)

			out := cmd.OutOrStdout()
			var (
				prev      domain.TransactionStatus
				dialShown bool
			)
			p.OnUpdate = func(attempt int, snap *poller.Snapshot) {
				if snap.Status != prev {
					fmt.Fprintf(out, "[%d] %s\n", attempt, snap.Status)
					prev = snap.Status
				}
				if snap.DialCode != "" && !dialShown {
					fmt.Fprintf(out, "dial %s to confirm the payment\n", snap.DialCode)
					dialShown = true
				}
			}

			snap, err := p.Wait(ctx, id)
			if snap != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				_ = enc.Encode(snapshotView(snap))
			}
			switch {
			case err == nil && snap.Status != domain.TransactionStatusCompleted:
				return fmt.Errorf("transaction %s ended %s", id, snap.Status)
			case errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "lexpay API base URL (default poller.base_url)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for account buyers")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between reads (default poller.interval)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "reads before giving up (default poller.max_attempts)")
	return cmd
}

type snapshotJSON struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentURL    string `json:"payment_url,omitempty"`
	DialCode      string `json:"dial_code,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

func snapshotView(s *poller.Snapshot) snapshotJSON {
	return snapshotJSON{
		ID:            s.ID.String(),
		Status:        string(s.Status),
		PaymentURL:    s.PaymentURL,
		DialCode:      s.DialCode,
		FailureReason: s.FailureReason,
		CancelReason:  s.CancelReason,
	}
}
