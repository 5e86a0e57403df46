package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BuyerKind tags which identifier a BuyerIdentity carries.
type BuyerKind string

const (
	BuyerKindAccount BuyerKind = "account"
	BuyerKindGuest   BuyerKind = "guest"
)

var (
	ErrEmptyBuyer       = errors.New("buyer identifier is empty")
	ErrInvalidEmail     = errors.New("invalid guest email")
	ErrUnknownBuyerKind = errors.New("unknown buyer kind")
)

var emailValidator = validator.New()

// BuyerIdentity is either a stable account identifier or a normalized guest
// email. Account identifiers are kept verbatim whatever their shape.
type BuyerIdentity struct {
	Kind BuyerKind `json:"kind"`
	Ref  string    `json:"ref"`
}

// AccountBuyer builds an account identity.
func AccountBuyer(accountID string) (BuyerIdentity, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return BuyerIdentity{}, ErrEmptyBuyer
	}
	return BuyerIdentity{Kind: BuyerKindAccount, Ref: id}, nil
}

// GuestBuyer builds a guest identity from an email address.
func GuestBuyer(email string) (BuyerIdentity, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return BuyerIdentity{}, ErrEmptyBuyer
	}
	if err := emailValidator.Var(normalized, "email"); err != nil {
		return BuyerIdentity{}, ErrInvalidEmail
	}
	return BuyerIdentity{Kind: BuyerKindGuest, Ref: normalized}, nil
}

// ParseBuyer rebuilds an identity from its stored columns.
func ParseBuyer(kind, ref string) (BuyerIdentity, error) {
	switch BuyerKind(kind) {
	case BuyerKindAccount:
		return AccountBuyer(ref)
	case BuyerKindGuest:
		return GuestBuyer(ref)
	default:
		return BuyerIdentity{}, ErrUnknownBuyerKind
	}
}

// Key returns the canonical "<kind>:<ref>" form used for locking and caching.
func (b BuyerIdentity) Key() string {
	return string(b.Kind) + ":" + b.Ref
}

func (b BuyerIdentity) IsZero() bool {
	return b.Kind == "" && b.Ref == ""
}

func (b BuyerIdentity) String() string {
	return b.Key()
}

// PairKey identifies the (buyer, document) pair that may have at most one open transaction.
func PairKey(buyer BuyerIdentity, documentType string) string {
	return buyer.Key() + "|" + documentType
}
