package entity

import (
	"time"

	"pos-shopify-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoCustomerDoc represents a customer in MongoDB.
type MongoCustomerDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	TenantID        string             `bson:"tenantId"`
	FirstName       string             `bson:"firstName"`
	LastName        string             `bson:"lastName"`
	Email           string             `bson:"email"`
	Mobile          string             `bson:"mobile"`
	AddressLine1    string             `bson:"addressLine1"`
	AddressLine2    string             `bson:"addressLine2"`
	City            string             `bson:"city"`
	State           string             `bson:"state"`
	Country         string             `bson:"country"`
	ZipCode         string             `bson:"zipCode"`
	ShippingAddress string             `bson:"shippingAddress"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCustomerDoc) ToDomain() *domain.Customer {
	return &domain.Customer{
		ID:              d.ID.Hex(),
		TenantID:        d.TenantID,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Email:           d.Email,
		Mobile:          d.Mobile,
		AddressLine1:    d.AddressLine1,
		AddressLine2:    d.AddressLine2,
		City:            d.City,
		State:           d.State,
		Country:         d.Country,
		ZipCode:         d.ZipCode,
		ShippingAddress: d.ShippingAddress,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// MongoCustomerDocFromDomain converts a domain entity to a MongoDB document
func MongoCustomerDocFromDomain(c *domain.Customer) *MongoCustomerDoc {
	doc := &MongoCustomerDoc{
		TenantID:        c.TenantID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Email:           c.Email,
		Mobile:          c.Mobile,
		AddressLine1:    c.AddressLine1,
		AddressLine2:    c.AddressLine2,
		City:            c.City,
		State:           c.State,
		Country:         c.Country,
		ZipCode:         c.ZipCode,
		ShippingAddress: c.ShippingAddress,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(c.ID); err == nil {
			doc.ID = objID
		}
	}
	return doc
}
