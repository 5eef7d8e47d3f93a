package ports

import (
	"context"

	"pos-shopify-sync/internal/domain"
)

// ConnectionRepository persists per-tenant Shopify connections.
type ConnectionRepository interface {
	GetByTenantID(ctx context.Context, tenantID string) (*domain.Connection, error)
	Save(ctx context.Context, conn *domain.Connection) error
	Delete(ctx context.Context, tenantID string) error
	ListSyncEnabled(ctx context.Context) ([]*domain.Connection, error)
}

// CatalogRepository persists products with their embedded groups and
// variants. Lookups return (nil, nil) when nothing matches.
type CatalogRepository interface {
	GetByID(ctx context.Context, tenantID, productID string) (*domain.Product, error)
	GetByExternalID(ctx context.Context, tenantID, externalProductID string) (*domain.Product, error)
	GetBySKU(ctx context.Context, tenantID, sku string) (*domain.Product, error)
	GetByName(ctx context.Context, tenantID, name string) (*domain.Product, error)
	GetByExternalVariantID(ctx context.Context, tenantID, externalVariantID string) (*domain.Product, error)
	Save(ctx context.Context, product *domain.Product) error
	NextSKUSequence(ctx context.Context, tenantID string) (int64, error)
}

// OrderRepository persists orders with embedded lines.
type OrderRepository interface {
	GetByExternalID(ctx context.Context, tenantID, externalOrderID string) (*domain.Order, error)
	GetSellByInvoiceNo(ctx context.Context, tenantID, invoiceNo string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, tenantID, orderID string) error
	ListWithExternalID(ctx context.Context, tenantID string) ([]*domain.Order, error)
	ListSellOrders(ctx context.Context, tenantID string) ([]*domain.Order, error)
}

// CustomerRepository persists tenant customers, matched by email.
type CustomerRepository interface {
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.Customer, error)
	Save(ctx context.Context, customer *domain.Customer) error
}

// LookupRepository resolves brands and categories by name, creating them on
// first use. ID lookups return (nil, nil) when nothing matches.
type LookupRepository interface {
	GetOrCreateBrand(ctx context.Context, tenantID, name string) (*domain.Brand, error)
	GetOrCreateCategory(ctx context.Context, tenantID, name string) (*domain.Category, error)
	GetBrandByID(ctx context.Context, tenantID, brandID string) (*domain.Brand, error)
	GetCategoryByID(ctx context.Context, tenantID, categoryID string) (*domain.Category, error)
}
