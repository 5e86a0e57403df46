package domain

import "time"

// CatalogItem is one purchasable document.
type CatalogItem struct {
	DocumentType   string        `json:"document_type"`
	Price          int64         `json:"price"`
	Currency       string        `json:"currency"`
	Description    string        `json:"description"`
	AccessDuration time.Duration `json:"-"` // zero means permanent access
}

// ExpiresAt returns when a grant bought now would lapse, or nil if permanent.
func (c CatalogItem) ExpiresAt(now time.Time) *time.Time {
	if c.AccessDuration <= 0 {
		return nil
	}
	t := now.Add(c.AccessDuration)
	return &t
}
