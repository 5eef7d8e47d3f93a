package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultOrderNumberMinDigits is the minimum length of an all-digit invoice
// number for it to be treated as a Shopify-assigned order number during
// duplicate reconciliation. Internally generated invoice numbers carry a
// prefix (e.g. "INV-") and never match.
const DefaultOrderNumberMinDigits = 3

// Connection holds one tenant's Shopify credentials and sync settings.
// The access token is stored encrypted and only decrypted in memory for the
// duration of a job or request.
type Connection struct {
	ID                   string     `json:"id" bson:"_id,omitempty"`
	TenantID             string     `json:"tenant_id" bson:"tenant_id"`
	ShopDomain           string     `json:"shop_domain" bson:"shop_domain"`
	AccessToken          string     `json:"-" bson:"access_token"` // encrypted
	WebhookSecret        string     `json:"-" bson:"webhook_secret"`
	SyncEnabled          bool       `json:"sync_enabled" bson:"sync_enabled"`
	SyncLocationID       string     `json:"sync_location_id" bson:"sync_location_id"`
	OrderNumberMinDigits int        `json:"order_number_min_digits" bson:"order_number_min_digits"`
	ConnectedAt          time.Time  `json:"connected_at" bson:"connected_at"`
	LastSyncAt           *time.Time `json:"last_sync_at" bson:"last_sync_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" bson:"updated_at"`
}

// NewConnection builds a validated connection record for a tenant.
func NewConnection(tenantID, shopDomain, encryptedToken, webhookSecret, syncLocationID string) (*Connection, error) {
	c := &Connection{
		TenantID:             tenantID,
		ShopDomain:           shopDomain,
		AccessToken:          encryptedToken,
		WebhookSecret:        webhookSecret,
		SyncEnabled:          true,
		SyncLocationID:       syncLocationID,
		OrderNumberMinDigits: DefaultOrderNumberMinDigits,
		ConnectedAt:          time.Now(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the fields required for the connection to be usable.
// Settings are validated once on load/save, not re-interpreted per access.
func (c *Connection) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("connection: tenant id is required")
	}
	if c.ShopDomain == "" {
		return fmt.Errorf("connection: shop domain is required")
	}
	if strings.Contains(c.ShopDomain, "/") {
		return fmt.Errorf("connection: shop domain %q must be a bare host", c.ShopDomain)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("connection: access token is required")
	}
	if c.OrderNumberMinDigits <= 0 {
		c.OrderNumberMinDigits = DefaultOrderNumberMinDigits
	}
	return nil
}
