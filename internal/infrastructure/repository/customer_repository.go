package repository

import (
	"context"
	"fmt"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/repository/entity"
	"pos-shopify-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCustomerRepository implements CustomerRepository using MongoDB
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerRepository creates a new MongoDB customer repository
func NewMongoCustomerRepository(db *mongo.Database) ports.CustomerRepository {
	return &MongoCustomerRepository{
		collection: db.Collection("customers"),
	}
}

// GetByEmail retrieves a customer by email within a tenant, or (nil, nil).
func (r *MongoCustomerRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, nil
	}
	var doc entity.MongoCustomerDoc
	err := r.collection.FindOne(ctx, bson.M{"tenantId": tenantID, "email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return doc.ToDomain(), nil
}

// Save upserts a customer.
func (r *MongoCustomerRepository) Save(ctx context.Context, customer *domain.Customer) error {
	doc := entity.MongoCustomerDocFromDomain(customer)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	if customer.ID == "" {
		doc.ID = primitive.NewObjectID()
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert customer: %w", err)
		}
		customer.ID = doc.ID.Hex()
		return nil
	}

	objID, err := primitive.ObjectIDFromHex(customer.ID)
	if err != nil {
		return fmt.Errorf("invalid customer id: %w", err)
	}
	doc.ID = primitive.NilObjectID

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}
