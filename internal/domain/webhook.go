package domain

import "time"

// Webhook topics the dispatcher handles.
const (
	TopicOrdersCreate          = "orders/create"
	TopicOrdersUpdated         = "orders/updated"
	TopicOrdersPaid            = "orders/paid"
	TopicOrdersCancelled       = "orders/cancelled"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
	TopicProductsCreate        = "products/create"
	TopicProductsUpdate        = "products/update"
)

// WebhookEvent is a verified inbound webhook ready for processing.
type WebhookEvent struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Topic      string    `json:"topic"`
	ShopDomain string    `json:"shop_domain"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
