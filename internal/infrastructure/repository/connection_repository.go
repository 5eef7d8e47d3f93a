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

// MongoConnectionRepository implements ConnectionRepository using MongoDB
type MongoConnectionRepository struct {
	collection *mongo.Collection
}

// NewMongoConnectionRepository creates a new MongoDB connection repository
func NewMongoConnectionRepository(db *mongo.Database) ports.ConnectionRepository {
	return &MongoConnectionRepository{
		collection: db.Collection("shopify_connections"),
	}
}

// GetByTenantID retrieves a tenant's connection, or (nil, nil) when the
// tenant has never connected.
func (r *MongoConnectionRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.Connection, error) {
	var doc entity.MongoConnectionDoc
	err := r.collection.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return doc.ToDomain(), nil
}

// Save upserts a connection keyed by tenant.
func (r *MongoConnectionRepository) Save(ctx context.Context, conn *domain.Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	doc := entity.MongoConnectionDocFromDomain(conn)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	// _id is omitted from $set so upserts never clash with an existing id.
	doc.ID = primitive.NilObjectID

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"tenantId": conn.TenantID}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// Delete removes a tenant's connection.
func (r *MongoConnectionRepository) Delete(ctx context.Context, tenantID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"tenantId": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("connection not found for tenant %s", tenantID)
	}
	return nil
}

// ListSyncEnabled retrieves every connection with scheduled sync turned on.
func (r *MongoConnectionRepository) ListSyncEnabled(ctx context.Context) ([]*domain.Connection, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"syncEnabled": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var conns []*domain.Connection
	for cursor.Next(ctx) {
		var doc entity.MongoConnectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		conns = append(conns, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return conns, nil
}
