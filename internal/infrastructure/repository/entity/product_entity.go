package entity

import (
	"time"

	"pos-shopify-sync/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoProductDoc represents a product in MongoDB. Groups and variants are
// embedded so the product persists atomically. Prices are stored as strings
// to keep exact decimal values.
type MongoProductDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	TenantID          string             `bson:"tenantId"`
	Name              string             `bson:"name"`
	SKU               string             `bson:"sku"`
	Description       string             `bson:"description"`
	Type              string             `bson:"type"`
	BrandID           string             `bson:"brandId"`
	CategoryID        string             `bson:"categoryId"`
	Image             string             `bson:"image"`
	ExternalProductID string             `bson:"externalProductId,omitempty"`
	EnableStock       bool               `bson:"enableStock"`
	SyncDisabled      bool               `bson:"syncDisabled"`
	NotForSelling     bool               `bson:"notForSelling"`
	LocationIDs       []string           `bson:"locationIds"`
	Groups            []MongoGroupDoc    `bson:"groups"`
	Variants          []MongoVariantDoc  `bson:"variants"`
	LastSyncedAt      *time.Time         `bson:"lastSyncedAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

// MongoGroupDoc is an embedded variation group.
type MongoGroupDoc struct {
	ID      string `bson:"id"`
	Name    string `bson:"name"`
	IsDummy bool   `bson:"isDummy"`
}

// MongoVariantDoc is an embedded variant.
type MongoVariantDoc struct {
	ID                string             `bson:"id"`
	GroupID           string             `bson:"groupId"`
	Name              string             `bson:"name"`
	SubSKU            string             `bson:"subSku"`
	SellPrice         string             `bson:"sellPrice"`
	ExternalVariantID string             `bson:"externalVariantId,omitempty"`
	Inventory         map[string]float64 `bson:"inventory"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoProductDoc) ToDomain() *domain.Product {
	groups := make([]domain.ProductGroup, 0, len(d.Groups))
	for _, g := range d.Groups {
		groups = append(groups, domain.ProductGroup{ID: g.ID, Name: g.Name, IsDummy: g.IsDummy})
	}
	variants := make([]domain.Variant, 0, len(d.Variants))
	for _, v := range d.Variants {
		price, _ := decimal.NewFromString(v.SellPrice)
		variants = append(variants, domain.Variant{
			ID:                v.ID,
			GroupID:           v.GroupID,
			Name:              v.Name,
			SubSKU:            v.SubSKU,
			SellPrice:         price,
			ExternalVariantID: v.ExternalVariantID,
			Inventory:         v.Inventory,
		})
	}
	return &domain.Product{
		ID:                d.ID.Hex(),
		TenantID:          d.TenantID,
		Name:              d.Name,
		SKU:               d.SKU,
		Description:       d.Description,
		Type:              domain.ProductType(d.Type),
		BrandID:           d.BrandID,
		CategoryID:        d.CategoryID,
		Image:             d.Image,
		ExternalProductID: d.ExternalProductID,
		EnableStock:       d.EnableStock,
		SyncDisabled:      d.SyncDisabled,
		NotForSelling:     d.NotForSelling,
		LocationIDs:       d.LocationIDs,
		Groups:            groups,
		Variants:          variants,
		LastSyncedAt:      d.LastSyncedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// MongoProductDocFromDomain converts a domain entity to a MongoDB document
func MongoProductDocFromDomain(p *domain.Product) *MongoProductDoc {
	groups := make([]MongoGroupDoc, 0, len(p.Groups))
	for _, g := range p.Groups {
		groups = append(groups, MongoGroupDoc{ID: g.ID, Name: g.Name, IsDummy: g.IsDummy})
	}
	variants := make([]MongoVariantDoc, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, MongoVariantDoc{
			ID:                v.ID,
			GroupID:           v.GroupID,
			Name:              v.Name,
			SubSKU:            v.SubSKU,
			SellPrice:         v.SellPrice.String(),
			ExternalVariantID: v.ExternalVariantID,
			Inventory:         v.Inventory,
		})
	}
	doc := &MongoProductDoc{
		TenantID:          p.TenantID,
		Name:              p.Name,
		SKU:               p.SKU,
		Description:       p.Description,
		Type:              string(p.Type),
		BrandID:           p.BrandID,
		CategoryID:        p.CategoryID,
		Image:             p.Image,
		ExternalProductID: p.ExternalProductID,
		EnableStock:       p.EnableStock,
		SyncDisabled:      p.SyncDisabled,
		NotForSelling:     p.NotForSelling,
		LocationIDs:       p.LocationIDs,
		Groups:            groups,
		Variants:          variants,
		LastSyncedAt:      p.LastSyncedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
