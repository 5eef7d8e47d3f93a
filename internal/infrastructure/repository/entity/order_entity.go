package entity

import (
	"time"

	"pos-shopify-sync/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoOrderDoc represents an order in MongoDB. Lines are embedded so the
// header and its lines are written atomically. Money is stored as strings.
type MongoOrderDoc struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty"`
	TenantID            string              `bson:"tenantId"`
	LocationID          string              `bson:"locationId"`
	Type                string              `bson:"type"`
	Status              string              `bson:"status"`
	CustomerID          string              `bson:"customerId"`
	InvoiceNo           string              `bson:"invoiceNo"`
	ExternalOrderID     string              `bson:"externalOrderId,omitempty"`
	TransactionDate     time.Time           `bson:"transactionDate"`
	SubTotal            string              `bson:"subTotal"`
	DiscountAmount      string              `bson:"discountAmount"`
	ShippingCharges     string              `bson:"shippingCharges"`
	FinalTotal          string              `bson:"finalTotal"`
	Lines               []MongoOrderLineDoc `bson:"lines"`
	AdditionalNotes     string              `bson:"additionalNotes"`
	PaymentStatus       string              `bson:"paymentStatus"`
	ExternalOrderSource string              `bson:"externalOrderSource"`
	CreatedAt           time.Time           `bson:"createdAt"`
	UpdatedAt           time.Time           `bson:"updatedAt"`
}

// MongoOrderLineDoc is an embedded order line.
type MongoOrderLineDoc struct {
	ID        string  `bson:"id"`
	ProductID string  `bson:"productId"`
	VariantID string  `bson:"variantId"`
	Quantity  float64 `bson:"quantity"`
	UnitPrice string  `bson:"unitPrice"`
	LineTotal string  `bson:"lineTotal"`
	Note      string  `bson:"note"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoOrderDoc) ToDomain() *domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		unitPrice, _ := decimal.NewFromString(l.UnitPrice)
		lineTotal, _ := decimal.NewFromString(l.LineTotal)
		lines = append(lines, domain.OrderLine{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
			Note:      l.Note,
		})
	}
	subTotal, _ := decimal.NewFromString(d.SubTotal)
	discount, _ := decimal.NewFromString(d.DiscountAmount)
	shipping, _ := decimal.NewFromString(d.ShippingCharges)
	finalTotal, _ := decimal.NewFromString(d.FinalTotal)
	return &domain.Order{
		ID:                  d.ID.Hex(),
		TenantID:            d.TenantID,
		LocationID:          d.LocationID,
		Type:                d.Type,
		Status:              domain.OrderStatus(d.Status),
		CustomerID:          d.CustomerID,
		InvoiceNo:           d.InvoiceNo,
		ExternalOrderID:     d.ExternalOrderID,
		TransactionDate:     d.TransactionDate,
		SubTotal:            subTotal,
		DiscountAmount:      discount,
		ShippingCharges:     shipping,
		FinalTotal:          finalTotal,
		Lines:               lines,
		AdditionalNotes:     d.AdditionalNotes,
		PaymentStatus:       d.PaymentStatus,
		ExternalOrderSource: d.ExternalOrderSource,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// MongoOrderDocFromDomain converts a domain entity to a MongoDB document
func MongoOrderDocFromDomain(o *domain.Order) *MongoOrderDoc {
	lines := make([]MongoOrderLineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, MongoOrderLineDoc{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
			LineTotal: l.LineTotal.String(),
			Note:      l.Note,
		})
	}
	doc := &MongoOrderDoc{
		TenantID:            o.TenantID,
		LocationID:          o.LocationID,
		Type:                o.Type,
		Status:              string(o.Status),
		CustomerID:          o.CustomerID,
		InvoiceNo:           o.InvoiceNo,
		ExternalOrderID:     o.ExternalOrderID,
		TransactionDate:     o.TransactionDate,
		SubTotal:            o.SubTotal.String(),
		DiscountAmount:      o.DiscountAmount.String(),
		ShippingCharges:     o.ShippingCharges.String(),
		FinalTotal:          o.FinalTotal.String(),
		Lines:               lines,
		AdditionalNotes:     o.AdditionalNotes,
		PaymentStatus:       o.PaymentStatus,
		ExternalOrderSource: o.ExternalOrderSource,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if o.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(o.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
