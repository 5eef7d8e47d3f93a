package entity

import (
	"time"

	"pos-shopify-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoConnectionDoc represents a tenant's Shopify connection in MongoDB.
type MongoConnectionDoc struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	TenantID             string             `bson:"tenantId"`
	ShopDomain           string             `bson:"shopDomain"`
	AccessToken          string             `bson:"accessToken"`
	WebhookSecret        string             `bson:"webhookSecret"`
	SyncEnabled          bool               `bson:"syncEnabled"`
	SyncLocationID       string             `bson:"syncLocationId"`
	OrderNumberMinDigits int                `bson:"orderNumberMinDigits"`
	ConnectedAt          time.Time          `bson:"connectedAt"`
	LastSyncAt           *time.Time         `bson:"lastSyncAt,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoConnectionDoc) ToDomain() *domain.Connection {
	return &domain.Connection{
		ID:                   d.ID.Hex(),
		TenantID:             d.TenantID,
		ShopDomain:           d.ShopDomain,
		AccessToken:          d.AccessToken,
		WebhookSecret:        d.WebhookSecret,
		SyncEnabled:          d.SyncEnabled,
		SyncLocationID:       d.SyncLocationID,
		OrderNumberMinDigits: d.OrderNumberMinDigits,
		ConnectedAt:          d.ConnectedAt,
		LastSyncAt:           d.LastSyncAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

// MongoConnectionDocFromDomain converts a domain entity to a MongoDB document
func MongoConnectionDocFromDomain(conn *domain.Connection) *MongoConnectionDoc {
	doc := &MongoConnectionDoc{
		TenantID:             conn.TenantID,
		ShopDomain:           conn.ShopDomain,
		AccessToken:          conn.AccessToken,
		WebhookSecret:        conn.WebhookSecret,
		SyncEnabled:          conn.SyncEnabled,
		SyncLocationID:       conn.SyncLocationID,
		OrderNumberMinDigits: conn.OrderNumberMinDigits,
		ConnectedAt:          conn.ConnectedAt,
		LastSyncAt:           conn.LastSyncAt,
		CreatedAt:            conn.CreatedAt,
		UpdatedAt:            conn.UpdatedAt,
	}
	if conn.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(conn.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
