package service

import (
	"sort"
	"strings"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/pkg/apperror"
)

const CurrencyXAF = "XAF"

// DefaultCatalogItems is the fixed set of purchasable documents.
func DefaultCatalogItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{DocumentType: "penal_code", Price: 2000, Currency: CurrencyXAF, Description: "Code pénal du Cameroun"},
		{DocumentType: "civil_code", Price: 2000, Currency: CurrencyXAF, Description: "Code civil"},
		{DocumentType: "labour_code", Price: 1500, Currency: CurrencyXAF, Description: "Code du travail"},
		{DocumentType: "criminal_procedure_code", Price: 1500, Currency: CurrencyXAF, Description: "Code de procédure pénale"},
		{DocumentType: "ohada_uniform_acts", Price: 3500, Currency: CurrencyXAF, Description: "Actes uniformes OHADA"},
		{DocumentType: "constitution", Price: 500, Currency: CurrencyXAF, Description: "Constitution de la République du Cameroun"},
		{DocumentType: "all_codes_annual", Price: 15000, Currency: CurrencyXAF, Description: "Accès annuel à tous les codes", AccessDuration: 365 * 24 * time.Hour},
	}
}

// StaticCatalog is an immutable in-memory catalog. Safe for concurrent use.
type StaticCatalog struct {
	items map[string]domain.CatalogItem
	order []string
}

// NewStaticCatalog builds a catalog. Later duplicates override earlier entries.
func NewStaticCatalog(items []domain.CatalogItem) *StaticCatalog {
	c := &StaticCatalog{items: make(map[string]domain.CatalogItem, len(items))}
	for _, it := range items {
		if _, dup := c.items[it.DocumentType]; !dup {
			c.order = append(c.order, it.DocumentType)
		}
		c.items[it.DocumentType] = it
	}
	sort.Strings(c.order)
	return c
}

// Lookup returns the item for documentType or a PAY_001 error. It never substitutes a default.
func (c *StaticCatalog) Lookup(documentType string) (domain.CatalogItem, error) {
	item, ok := c.items[strings.TrimSpace(documentType)]
	if !ok {
		return domain.CatalogItem{}, apperror.ErrUnknownDocument(documentType)
	}
	return item, nil
}

// List returns all items sorted by document type.
func (c *StaticCatalog) List() []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}
