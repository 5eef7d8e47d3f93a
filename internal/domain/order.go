package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the local order lifecycle state.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusFinal     OrderStatus = "final"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderTypeSell is the only order type the sync engine produces.
const OrderTypeSell = "sell"

// Order is a local sale transaction. Lines are embedded so the header and
// its lines persist as one atomic document.
type Order struct {
	ID                  string          `json:"id" bson:"_id,omitempty"`
	TenantID            string          `json:"tenant_id" bson:"tenant_id"`
	LocationID          string          `json:"location_id" bson:"location_id"`
	Type                string          `json:"type" bson:"type"`
	Status              OrderStatus     `json:"status" bson:"status"`
	CustomerID          string          `json:"customer_id" bson:"customer_id"`
	InvoiceNo           string          `json:"invoice_no" bson:"invoice_no"`
	ExternalOrderID     string          `json:"external_order_id" bson:"external_order_id"`
	TransactionDate     time.Time       `json:"transaction_date" bson:"transaction_date"`
	SubTotal            decimal.Decimal `json:"sub_total" bson:"sub_total"`
	DiscountAmount      decimal.Decimal `json:"discount_amount" bson:"discount_amount"`
	ShippingCharges     decimal.Decimal `json:"shipping_charges" bson:"shipping_charges"`
	FinalTotal          decimal.Decimal `json:"final_total" bson:"final_total"`
	Lines               []OrderLine     `json:"lines" bson:"lines"`
	AdditionalNotes     string          `json:"additional_notes" bson:"additional_notes"`
	PaymentStatus       string          `json:"payment_status" bson:"payment_status"`
	ExternalOrderSource string          `json:"external_order_source" bson:"external_order_source"`
	CreatedAt           time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" bson:"updated_at"`
}

// OrderLine is one sold line item.
type OrderLine struct {
	ID        string          `json:"id" bson:"id"`
	ProductID string          `json:"product_id" bson:"product_id"`
	VariantID string          `json:"variant_id" bson:"variant_id"`
	Quantity  float64         `json:"quantity" bson:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" bson:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total" bson:"line_total"`
	Note      string          `json:"note" bson:"note"`
}

// MapFinancialStatus translates a Shopify financial_status into the local
// order status. Unknown values land as draft so nothing is finalized by
// accident.
func MapFinancialStatus(financialStatus string) OrderStatus {
	switch financialStatus {
	case "paid", "authorized", "partially_paid", "refunded", "voided", "partially_refunded":
		return OrderStatusFinal
	case "pending":
		return OrderStatusDraft
	default:
		return OrderStatusDraft
	}
}

// Customer is a tenant-scoped contact record. Mobile is kept as an empty
// string rather than null so downstream formatting never trips on nil.
type Customer struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	TenantID        string    `json:"tenant_id" bson:"tenant_id"`
	FirstName       string    `json:"first_name" bson:"first_name"`
	LastName        string    `json:"last_name" bson:"last_name"`
	Email           string    `json:"email" bson:"email"`
	Mobile          string    `json:"mobile" bson:"mobile"`
	AddressLine1    string    `json:"address_line_1" bson:"address_line_1"`
	AddressLine2    string    `json:"address_line_2" bson:"address_line_2"`
	City            string    `json:"city" bson:"city"`
	State           string    `json:"state" bson:"state"`
	Country         string    `json:"country" bson:"country"`
	ZipCode         string    `json:"zip_code" bson:"zip_code"`
	ShippingAddress string    `json:"shipping_address" bson:"shipping_address"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// FullName joins the customer's name parts, skipping empty segments.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}
