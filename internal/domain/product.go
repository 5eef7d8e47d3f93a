package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType distinguishes products with a single variant from products
// whose variants are grouped by option.
type ProductType string

const (
	ProductTypeSingle   ProductType = "single"
	ProductTypeVariable ProductType = "variable"
)

// DummyGroupName is the sentinel variation group used for single products.
const DummyGroupName = "DUMMY"

// Product is the local catalog record. Variants and their variation groups
// are embedded so a product upserts as one atomic document.
type Product struct {
	ID                string         `json:"id" bson:"_id,omitempty"`
	TenantID          string         `json:"tenant_id" bson:"tenant_id"`
	Name              string         `json:"name" bson:"name"`
	SKU               string         `json:"sku" bson:"sku"`
	Description       string         `json:"description" bson:"description"`
	Type              ProductType    `json:"type" bson:"type"`
	BrandID           string         `json:"brand_id" bson:"brand_id"`
	CategoryID        string         `json:"category_id" bson:"category_id"`
	Image             string         `json:"image" bson:"image"`
	ExternalProductID string         `json:"external_product_id" bson:"external_product_id"`
	EnableStock       bool           `json:"enable_stock" bson:"enable_stock"`
	SyncDisabled      bool           `json:"sync_disabled" bson:"sync_disabled"`
	NotForSelling     bool           `json:"not_for_selling" bson:"not_for_selling"`
	LocationIDs       []string       `json:"location_ids" bson:"location_ids"`
	Groups            []ProductGroup `json:"groups" bson:"groups"`
	Variants          []Variant      `json:"variants" bson:"variants"`
	LastSyncedAt      *time.Time     `json:"last_synced_at" bson:"last_synced_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" bson:"updated_at"`
}

// ProductGroup is a variation grouping: one per declared option name for
// variable products, or the DUMMY sentinel for single products.
type ProductGroup struct {
	ID      string `json:"id" bson:"id"`
	Name    string `json:"name" bson:"name"`
	IsDummy bool   `json:"is_dummy" bson:"is_dummy"`
}

// Variant is one sellable variation of a product. Inventory is tracked per
// location.
type Variant struct {
	ID                string             `json:"id" bson:"id"`
	GroupID           string             `json:"group_id" bson:"group_id"`
	Name              string             `json:"name" bson:"name"`
	SubSKU            string             `json:"sub_sku" bson:"sub_sku"`
	SellPrice         decimal.Decimal    `json:"sell_price" bson:"sell_price"`
	ExternalVariantID string             `json:"external_variant_id" bson:"external_variant_id"`
	Inventory         map[string]float64 `json:"inventory" bson:"inventory"` // locationID -> qty
}

// GroupByName returns the variation group with the given name, or nil.
func (p *Product) GroupByName(name string) *ProductGroup {
	for i := range p.Groups {
		if p.Groups[i].Name == name {
			return &p.Groups[i]
		}
	}
	return nil
}

// VariantByExternalID returns the variant linked to the given Shopify
// variant id, or nil.
func (p *Product) VariantByExternalID(externalID string) *Variant {
	if externalID == "" {
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].ExternalVariantID == externalID {
			return &p.Variants[i]
		}
	}
	return nil
}

// FirstVariant returns the first variant, or nil when the product has none.
func (p *Product) FirstVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}

// HasLocation reports whether the product is associated with a location.
func (p *Product) HasLocation(locationID string) bool {
	for _, id := range p.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

// Brand is a tenant-scoped brand lookup record, created on demand.
type Brand struct {
	ID       string `json:"id" bson:"_id,omitempty"`
	TenantID string `json:"tenant_id" bson:"tenant_id"`
	Name     string `json:"name" bson:"name"`
}

// Category is a tenant-scoped category lookup record, created on demand.
type Category struct {
	ID        string `json:"id" bson:"_id,omitempty"`
	TenantID  string `json:"tenant_id" bson:"tenant_id"`
	Name      string `json:"name" bson:"name"`
	ShortCode string `json:"short_code" bson:"short_code"`
}
