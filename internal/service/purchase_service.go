package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/pkg/apperror"
	"lexpay/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL = 24 * time.Hour
	eventMarkerTTL = 72 * time.Hour
)

// PurchaseServiceImpl implements ports.PurchaseService. It is the only
// component that writes transaction status.
type PurchaseServiceImpl struct {
	catalog    ports.Catalog
	gateway    ports.GatewayClient
	txRepo     ports.TransactionRepository
	eventRepo  ports.TransactionEventRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	marker     ports.EventMarker
	access     ports.AccessService
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewPurchaseService creates a new PurchaseServiceImpl.
func NewPurchaseService(
	catalog ports.Catalog,
	gateway ports.GatewayClient,
	txRepo ports.TransactionRepository,
	eventRepo ports.TransactionEventRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	marker ports.EventMarker,
	access ports.AccessService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		catalog:    catalog,
		gateway:    gateway,
		txRepo:     txRepo,
		eventRepo:  eventRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		marker:     marker,
		access:     access,
		transactor: transactor,
		log:        logger.Component(log, "purchase"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartPurchase supersedes any open attempt for the pair, records a new
// pending transaction and asks the gateway for a hosted payment link.
func (s *PurchaseServiceImpl) StartPurchase(ctx context.Context, req ports.PurchaseRequest) (*domain.Transaction, error) {
	item, err := s.catalog.Lookup(req.DocumentType)
	if err != nil {
		return nil, err
	}
	if req.Buyer.IsZero() {
		return nil, apperror.Validation("buyer identity is required")
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildPurchaseIdempotencyKey(req.Buyer, item.DocumentType, req.IdempotencyKey)
		existing, err := s.lookupIdempotent(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := s.now()
	contact := req.Contact
	if contact.Email == "" && req.Buyer.Kind == domain.BuyerKindGuest {
		contact.Email = req.Buyer.Ref
	}
	txn := &domain.Transaction{
		ID:           uuid.New(),
		Buyer:        req.Buyer,
		DocumentType: item.DocumentType,
		Amount:       item.Price,
		Currency:     item.Currency,
		Status:       domain.TransactionStatusPending,
		Contact:      contact,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	replay, err := s.createPending(ctx, txn, idempKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	link, linkErr := s.gateway.CreatePaymentLink(ctx, txn)

	result, err := s.recordLink(ctx, txn.ID, link, linkErr)
	if err != nil {
		return nil, err
	}

	if idempKey != "" {
		if _, err := s.idempCache.Remember(ctx, idempKey, txn.ID, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache purchase idempotency key")
		}
	}

	s.log.Info().
		Str("tx_id", result.ID.String()).
		Str("document_type", result.DocumentType).
		Str("buyer_kind", string(result.Buyer.Kind)).
		Int64("amount", result.Amount).
		Msg("purchase started")

	return result, nil
}

// lookupIdempotent resolves a purchase key through Redis, then the database.
func (s *PurchaseServiceImpl) lookupIdempotent(ctx context.Context, key string) (*domain.Transaction, error) {
	id, found, err := s.idempCache.Lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if found {
		return s.snapshot(ctx, id)
	}

	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec == nil || rec.Expired(s.now(), idempotencyTTL) {
		return nil, nil
	}
	return s.snapshot(ctx, rec.TransactionID)
}

// createPending runs the supersede-and-insert step under the pair lock.
// A non-nil transaction is returned when the idempotency key was claimed
// by a concurrent request while this one waited for the lock.
func (s *PurchaseServiceImpl) createPending(ctx context.Context, txn *domain.Transaction, idempKey string) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.LockPair(ctx, dbTx, domain.PairKey(txn.Buyer, txn.DocumentType)); err != nil {
		return nil, apperror.InternalError(err)
	}

	if idempKey != "" {
		rec, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if rec != nil && !rec.Expired(txn.CreatedAt, idempotencyTTL) {
			_ = dbTx.Rollback(ctx)
			return s.snapshot(ctx, rec.TransactionID)
		}
	}

	open, err := s.txRepo.ListOpenForUpdate(ctx, dbTx, txn.Buyer, txn.DocumentType)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	reason := "superseded by " + txn.ID.String()
	for i := range open {
		prev := &open[i]
		if err := prev.Cancel(reason, txn.CreatedAt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("cancel %s: %w", prev.ID, err))
		}
		if err := s.txRepo.Update(ctx, dbTx, prev); err != nil {
			return nil, apperror.InternalError(err)
		}
		s.log.Info().
			Str("tx_id", prev.ID.String()).
			Str("superseded_by", txn.ID.String()).
			Msg("open transaction superseded")
	}

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(err)
	}

	if idempKey != "" {
		rec := &domain.IdempotencyRecord{Key: idempKey, TransactionID: txn.ID, CreatedAt: txn.CreatedAt}
		if err := s.idempRepo.Create(ctx, dbTx, rec, txn.CreatedAt.Add(-idempotencyTTL)); err != nil {
			return nil, apperror.InternalError(err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil, nil
}

// recordLink applies the outcome of CreatePaymentLink to the stored row.
func (s *PurchaseServiceImpl) recordLink(ctx context.Context, id uuid.UUID, link *domain.PaymentLink, linkErr error) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn == nil {
		return nil, apperror.InternalError(fmt.Errorf("transaction %s vanished", id))
	}
	now := s.now()

	if linkErr != nil {
		reason := failureReason(linkErr)
		if !txn.IsTerminal() {
			if err := txn.Fail(reason, now); err != nil {
				return nil, apperror.InternalError(err)
			}
			if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
				return nil, apperror.InternalError(err)
			}
		}
		ev := domain.NewTransactionEvent(txn.ID, domain.EventLinkFailed, "", "", errorPayload(linkErr))
		if _, err := s.eventRepo.Append(ctx, dbTx, ev); err != nil {
			return nil, apperror.InternalError(err)
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		s.log.Error().Err(linkErr).
			Str("tx_id", txn.ID.String()).
			Str("document_type", txn.DocumentType).
			Msg("payment link creation failed")
		return nil, gatewayAppError(linkErr).WithTransaction(txn.ID.String())
	}

	// A terminal row is immutable, so a late link only reaches the event log.
	if txn.IsTerminal() {
		ev := domain.NewTransactionEvent(txn.ID, domain.EventLinkCreated, "", "", lateLinkPayload(link))
		if _, err := s.eventRepo.Append(ctx, dbTx, ev); err != nil {
			return nil, apperror.InternalError(err)
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("status", string(txn.Status)).
			Str("gateway_reference", link.Reference).
			Msg("payment link arrived after the transaction went terminal")
		return txn, nil
	}

	if err := txn.SetGatewayReference(link.Reference); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record reference for %s: %w", txn.ID, err))
	}
	if link.URL != "" {
		url := link.URL
		txn.PaymentURL = &url
	}
	txn.UpdatedAt = now
	if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(err)
	}
	ev := domain.NewTransactionEvent(txn.ID, domain.EventLinkCreated, "", "", jsonPayload(link.Raw))
	if _, err := s.eventRepo.Append(ctx, dbTx, ev); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return txn, nil
}

// lateLinkPayload keeps the reference of a link the row can no longer hold.
func lateLinkPayload(link *domain.PaymentLink) []byte {
	b, _ := json.Marshal(map[string]any{
		"reference":   link.Reference,
		"payment_url": link.URL,
		"response":    json.RawMessage(jsonPayload(link.Raw)),
	})
	return b
}

// SubmitMobileMoneyCharge initiates a direct mobile money charge for a
// pending transaction.
func (s *PurchaseServiceImpl) SubmitMobileMoneyCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeOutcome, error) {
	phone, err := domain.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, apperror.Validation("phone_number must be a Cameroonian mobile number (9 digits starting with 6)")
	}
	network, err := domain.ParseNetwork(req.Network)
	if err != nil {
		return nil, apperror.Validation("network must be one of: mtn, orange")
	}

	txn, err := s.beginCharge(ctx, req.TransactionID, phone, network)
	if err != nil {
		return nil, err
	}

	result, chargeErr := s.gateway.InitiateCharge(ctx, txn, phone, network)

	return s.recordCharge(ctx, txn.ID, result, chargeErr)
}

func (s *PurchaseServiceImpl) beginCharge(ctx context.Context, id uuid.UUID, phone string, network domain.MobileNetwork) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.Status != domain.TransactionStatusPending {
		return nil, apperror.ErrInvalidState(fmt.Sprintf("transaction is %s, a charge needs a pending transaction", txn.Status)).
			WithTransaction(txn.ID.String())
	}
	if txn.GatewayReference == nil {
		return nil, apperror.ErrInvalidState("payment link is not ready yet").WithTransaction(txn.ID.String())
	}

	if err := txn.Transition(domain.TransactionStatusProcessing, s.now()); err != nil {
		return nil, apperror.InternalError(err)
	}
	txn.PhoneNumber = &phone
	txn.Network = &network
	if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("network", string(network)).
		Str("phone", domain.MaskPhone(phone)).
		Msg("mobile money charge submitted")
	return txn, nil
}

// recordCharge applies the charge response unless a webhook already
// finished the transaction.
func (s *PurchaseServiceImpl) recordCharge(ctx context.Context, id uuid.UUID, result *domain.ChargeResult, chargeErr error) (*ports.ChargeOutcome, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn == nil {
		return nil, apperror.InternalError(fmt.Errorf("transaction %s vanished", id))
	}
	alreadyTerminal := txn.IsTerminal()
	now := s.now()

	if chargeErr != nil {
		ev := domain.NewTransactionEvent(txn.ID, domain.EventChargeFailed, "", "", errorPayload(chargeErr))
		if _, err := s.eventRepo.Append(ctx, dbTx, ev); err != nil {
			return nil, apperror.InternalError(err)
		}
		if !alreadyTerminal {
			if err := txn.Fail(failureReason(chargeErr), now); err != nil {
				return nil, apperror.InternalError(err)
			}
			if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
				return nil, apperror.InternalError(err)
			}
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		if alreadyTerminal {
			s.log.Warn().Err(chargeErr).
				Str("tx_id", txn.ID.String()).
				Str("status", string(txn.Status)).
				Msg("charge failed after the transaction was settled by webhook")
			return &ports.ChargeOutcome{Transaction: txn}, nil
		}
		s.log.Error().Err(chargeErr).Str("tx_id", txn.ID.String()).Msg("mobile money charge failed")
		return nil, gatewayAppError(chargeErr).WithTransaction(txn.ID.String())
	}

	ev := domain.NewTransactionEvent(txn.ID, domain.EventChargeResponse, "", string(result.Action), jsonPayload(result.Raw))
	if _, err := s.eventRepo.Append(ctx, dbTx, ev); err != nil {
		return nil, apperror.InternalError(err)
	}

	if !alreadyTerminal {
		switch result.Action {
		case domain.ChargeActionRequireOTP:
			if err := txn.Transition(domain.TransactionStatusAwaitingAuthorization, now); err != nil {
				return nil, apperror.InternalError(err)
			}
		case domain.ChargeActionPendingWithCode:
			if result.DialCode != "" {
				code := result.DialCode
				txn.DialCode = &code
			}
			txn.UpdatedAt = now
		}
		if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(err)
		}
	} else {
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("status", string(txn.Status)).
			Str("action", string(result.Action)).
			Msg("charge response ignored, transaction already terminal")
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return &ports.ChargeOutcome{
		Transaction: txn,
		Action:      result.Action,
		DialCode:    result.DialCode,
		Message:     result.Message,
	}, nil
}

// ApplyWebhook authenticates a gateway callback and applies it exactly once.
func (s *PurchaseServiceImpl) ApplyWebhook(ctx context.Context, payload []byte, signature string) (*ports.WebhookAck, error) {
	if !s.gateway.VerifyCallback(payload, signature) {
		s.log.Warn().
			Bool("signature_present", signature != "").
			Int("payload_bytes", len(payload)).
			Msg("rejected webhook with invalid signature")
		return nil, apperror.ErrUnauthorized()
	}

	event, err := s.gateway.ParseCallback(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected malformed webhook payload")
		return nil, apperror.Validation("malformed callback payload")
	}

	dedupKey := event.DedupKey()
	seenBefore := false
	if dedupKey != "" {
		fresh, err := s.marker.MarkSeen(ctx, dedupKey, eventMarkerTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", event.EventID).Msg("event marker unavailable, relying on DB dedup")
		} else {
			seenBefore = !fresh
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.locate(ctx, dbTx, event)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		s.log.Warn().
			Str("gateway_reference", event.Reference).
			Str("app_tx_id", event.TransactionID).
			Msg("webhook for unknown transaction")
		return nil, apperror.ErrNotFound("transaction")
	}

	ack := &ports.WebhookAck{TransactionID: txn.ID, Status: txn.Status}

	if txn.IsTerminal() {
		if seenBefore {
			ack.Duplicate = true
			return ack, nil
		}
		replay := domain.NewTransactionEvent(txn.ID, domain.EventWebhookReplay, dedupKey, event.RawStatus, jsonPayload(event.Payload))
		inserted, err := s.eventRepo.Append(ctx, dbTx, replay)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		ack.Duplicate = !inserted
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("status", string(txn.Status)).
			Str("provider_status", event.RawStatus).
			Msg("webhook for terminal transaction recorded without effect")
		return ack, nil
	}

	inserted, err := s.eventRepo.Append(ctx, dbTx, domain.NewTransactionEvent(txn.ID, domain.EventWebhook, dedupKey, event.RawStatus, jsonPayload(event.Payload)))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !inserted {
		ack.Duplicate = true
		return ack, nil
	}

	adopted := false
	if txn.GatewayReference == nil && event.Reference != "" {
		// The callback beat the link response; adopt its reference.
		adopted = txn.SetGatewayReference(event.Reference) == nil
	}

	changed, err := s.applyOutcome(ctx, dbTx, txn, event)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if changed || adopted {
		if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(err)
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	ack.Status = txn.Status
	ack.Applied = changed
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("provider_status", event.RawStatus).
		Str("status", string(txn.Status)).
		Bool("applied", changed).
		Msg("webhook applied")
	return ack, nil
}

// locate finds the transaction by gateway reference, falling back to our own id.
func (s *PurchaseServiceImpl) locate(ctx context.Context, dbTx pgx.Tx, event *domain.CallbackEvent) (*domain.Transaction, error) {
	if event.Reference != "" {
		txn, err := s.txRepo.GetByGatewayReferenceForUpdate(ctx, dbTx, event.Reference)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if txn != nil {
			return txn, nil
		}
	}
	if event.TransactionID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(event.TransactionID)
	if err != nil {
		return nil, nil
	}
	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn != nil && event.Reference != "" && txn.GatewayReference != nil && *txn.GatewayReference != event.Reference {
		s.log.Warn().
			Str("tx_id", txn.ID.String()).
			Str("gateway_reference", event.Reference).
			Msg("webhook reference does not match transaction")
		return nil, nil
	}
	return txn, nil
}

// applyOutcome maps a normalized gateway status onto txn. It reports whether
// txn changed.
func (s *PurchaseServiceImpl) applyOutcome(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, event *domain.CallbackEvent) (bool, error) {
	now := s.now()
	switch event.Outcome {
	case domain.OutcomeCompleted:
		if event.Amount != nil && !event.Amount.Equal(decimal.NewFromInt(txn.Amount)) {
			s.log.Error().
				Str("tx_id", txn.ID.String()).
				Int64("expected", txn.Amount).
				Str("received", event.Amount.String()).
				Msg("refusing completion with mismatched amount")
			return true, txn.Fail("amount mismatch", now)
		}
		if err := txn.Transition(domain.TransactionStatusCompleted, now); err != nil {
			return false, err
		}
		if _, err := s.access.Grant(ctx, dbTx, ports.GrantRequest{
			Buyer:               txn.Buyer,
			DocumentType:        txn.DocumentType,
			SourceTransactionID: txn.ID,
			ExpiresAt:           s.grantExpiry(txn.DocumentType, now),
		}); err != nil {
			return false, fmt.Errorf("grant access: %w", err)
		}
		return true, nil

	case domain.OutcomeFailed:
		reason := event.Message
		if reason == "" {
			reason = "payment " + strings.ToLower(event.RawStatus)
		}
		return true, txn.Fail(reason, now)

	case domain.OutcomeCancelled:
		reason := event.Message
		if reason == "" {
			reason = "cancelled by payer"
		}
		return true, txn.Cancel(reason, now)

	case domain.OutcomeUnrecognized:
		s.log.Warn().
			Str("tx_id", txn.ID.String()).
			Str("provider_status", event.RawStatus).
			Msg("unrecognized provider status treated as processing")
	}

	if txn.Status == domain.TransactionStatusPending {
		return true, txn.Transition(domain.TransactionStatusProcessing, now)
	}
	return false, nil
}

func (s *PurchaseServiceImpl) grantExpiry(documentType string, now time.Time) *time.Time {
	item, err := s.catalog.Lookup(documentType)
	if err != nil {
		s.log.Warn().Str("document_type", documentType).Msg("document left the catalog, granting permanent access")
		return nil
	}
	return item.ExpiresAt(now)
}

// GetStatus returns a read-only snapshot.
func (s *PurchaseServiceImpl) GetStatus(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.snapshot(ctx, id)
}

// ListEvents returns the raw gateway traffic recorded for a transaction.
func (s *PurchaseServiceImpl) ListEvents(ctx context.Context, id uuid.UUID) ([]domain.TransactionEvent, error) {
	if _, err := s.snapshot(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByTransaction(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return events, nil
}

func (s *PurchaseServiceImpl) snapshot(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// gatewayAppError maps a gateway failure to GW_001 or GW_002. Provider text
// stays in failure_reason and the event log and never reaches the client.
func gatewayAppError(err error) *apperror.AppError {
	if gwErr, ok := domain.AsGatewayError(err); ok && gwErr.Kind == domain.GatewayErrorRejected {
		return apperror.ErrGatewayRejected(err)
	}
	return apperror.ErrGatewayUnavailable(err)
}

// failureReason is the short reason stored on a failed transaction.
// Provider rejection messages are kept verbatim.
func failureReason(err error) string {
	gwErr, ok := domain.AsGatewayError(err)
	if !ok {
		return "gateway error"
	}
	switch gwErr.Kind {
	case domain.GatewayErrorRejected:
		if gwErr.Message != "" {
			return gwErr.Message
		}
		return "rejected by gateway"
	case domain.GatewayErrorTimeout:
		return "gateway timeout"
	case domain.GatewayErrorMalformed:
		return "malformed gateway response"
	default:
		return "gateway unavailable"
	}
}

// errorPayload is the JSON stored for a failed gateway call. A JSON body
// from the provider is stored as is.
func errorPayload(err error) []byte {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		if len(gwErr.Body) > 0 && json.Valid(gwErr.Body) {
			return gwErr.Body
		}
		b, _ := json.Marshal(map[string]any{
			"kind":        gwErr.Kind,
			"message":     gwErr.Message,
			"status_code": gwErr.StatusCode,
			"body":        string(gwErr.Body),
		})
		return b
	}
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return b
}

func jsonPayload(raw []byte) []byte {
	if len(raw) > 0 && json.Valid(raw) {
		return raw
	}
	if len(raw) == 0 {
		return []byte(`{}`)
	}
	b, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return b
}
