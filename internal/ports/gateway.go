package ports

import (
	"context"

	"pos-shopify-sync/internal/infrastructure/shopify"
)

// ShopifyGateway is the remote API surface the sync engines depend on. The
// production implementation is the REST gateway; tests use in-memory fakes.
type ShopifyGateway interface {
	ShopDomain() string

	ListProducts(ctx context.Context, opts shopify.ListOptions) ([]shopify.Product, error)
	GetProduct(ctx context.Context, productID int64) (*shopify.Product, error)
	CreateProduct(ctx context.Context, product *shopify.Product) (*shopify.Product, error)
	UpdateProduct(ctx context.Context, product *shopify.Product) (*shopify.Product, error)

	ListOrders(ctx context.Context, opts shopify.ListOptions) ([]shopify.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*shopify.Order, error)

	SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, available int) error
	ListLocations(ctx context.Context) ([]shopify.Location, error)

	GetShop(ctx context.Context) (*shopify.Shop, error)

	CreateWebhook(ctx context.Context, topic, address string) (*shopify.Webhook, error)
	ListWebhooks(ctx context.Context) ([]shopify.Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID int64) error
}

// GatewayFactory builds a gateway bound to one shop and decrypted access
// token. Engines resolve the tenant connection, decrypt, then open a gateway.
type GatewayFactory interface {
	NewGateway(shopDomain, accessToken string) ShopifyGateway
}

// GatewayFactoryFunc adapts a function to the GatewayFactory interface.
type GatewayFactoryFunc func(shopDomain, accessToken string) ShopifyGateway

func (f GatewayFactoryFunc) NewGateway(shopDomain, accessToken string) ShopifyGateway {
	return f(shopDomain, accessToken)
}
