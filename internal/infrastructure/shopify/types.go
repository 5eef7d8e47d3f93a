package shopify

import (
	"fmt"
	"time"
)

// APIError is returned for non-retriable Shopify API failures. It carries the
// HTTP status and remote response body for callers that classify errors.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify api error: %s %s: %s", e.Status, e.URL, e.Body)
}

// IsNotFound reports whether the error is a Shopify 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 404
}

// Product is a Shopify Admin REST product.
type Product struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	BodyHTML  string          `json:"body_html"`
	Vendor    string          `json:"vendor"`
	Type      string          `json:"product_type"`
	Handle    string          `json:"handle"`
	Status    string          `json:"status"`
	Tags      string          `json:"tags"`
	Options   []Option        `json:"options"`
	Variants  []RemoteVariant `json:"variants"`
	Images    []Image         `json:"images"`
	Image     *Image          `json:"image"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Option is one declared variation axis on a product (e.g. "Size").
type Option struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

// RemoteVariant is a Shopify product variant.
type RemoteVariant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Price             string `json:"price"`
	Option1           string `json:"option1"`
	Option2           string `json:"option2"`
	Option3           string `json:"option3"`
	InventoryItemID   int64  `json:"inventory_item_id"`
	InventoryQuantity int    `json:"inventory_quantity"`
	InventoryPolicy   string `json:"inventory_policy"`
}

// Image is a Shopify product image.
type Image struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Src       string `json:"src"`
	Position  int    `json:"position"`
}

// Order is a Shopify Admin REST order.
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     int64           `json:"order_number"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	FinancialStatus string          `json:"financial_status"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	Currency        string          `json:"currency"`
	SubtotalPrice   string          `json:"subtotal_price"`
	TotalDiscounts  string          `json:"total_discounts"`
	TotalPrice      string          `json:"total_price"`
	Note            string          `json:"note"`
	LineItems       []LineItem      `json:"line_items"`
	ShippingLines   []ShippingLine  `json:"shipping_lines"`
	Customer        *RemoteCustomer `json:"customer"`
	ShippingAddress *Address        `json:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address"`
}

// LineItem is one line on a Shopify order. ProductID and VariantID are zero
// when the referenced product was deleted from the shop.
type LineItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	VariantID int64   `json:"variant_id"`
	Title     string  `json:"title"`
	SKU       string  `json:"sku"`
	Quantity  float64 `json:"quantity"`
	Price     string  `json:"price"`
}

// ShippingLine is a shipping charge on an order.
type ShippingLine struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

// RemoteCustomer is the customer block embedded in a Shopify order.
type RemoteCustomer struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Phone          string   `json:"phone"`
	DefaultAddress *Address `json:"default_address"`
}

// Address is a Shopify postal address.
type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
	Phone    string `json:"phone"`
}

// Shop is the Shopify shop record, used for connection tests.
type Shop struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Domain   string `json:"domain"`
	Currency string `json:"currency"`
	Timezone string `json:"iana_timezone"`
}

// Webhook is a Shopify webhook subscription.
type Webhook struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// InventoryLevel is an inventory quantity at one location.
type InventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available"`
}

// Location is a Shopify fulfillment location.
type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
