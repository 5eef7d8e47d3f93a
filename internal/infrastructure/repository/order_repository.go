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

// MongoOrderRepository implements OrderRepository using MongoDB
type MongoOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderRepository creates a new MongoDB order repository
func NewMongoOrderRepository(db *mongo.Database) ports.OrderRepository {
	return &MongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc entity.MongoOrderDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoOrderRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*domain.Order, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var doc entity.MongoOrderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return orders, nil
}

// GetByExternalID retrieves the order linked to a Shopify order id.
func (r *MongoOrderRepository) GetByExternalID(ctx context.Context, tenantID, externalOrderID string) (*domain.Order, error) {
	if externalOrderID == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "externalOrderId": externalOrderID})
}

// GetSellByInvoiceNo retrieves a sell order by invoice number within a tenant.
func (r *MongoOrderRepository) GetSellByInvoiceNo(ctx context.Context, tenantID, invoiceNo string) (*domain.Order, error) {
	if invoiceNo == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{
		"tenantId":  tenantID,
		"type":      domain.OrderTypeSell,
		"invoiceNo": invoiceNo,
	})
}

// Save upserts an order with its embedded lines in one write.
func (r *MongoOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	doc := entity.MongoOrderDocFromDomain(order)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	if order.ID == "" {
		doc.ID = primitive.NewObjectID()
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			// The partial unique index on (tenantId, externalOrderId)
			// rejects the loser of two concurrent inserts.
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("order %s already exists: %w", order.ExternalOrderID, ports.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}
		order.ID = doc.ID.Hex()
		return nil
	}

	objID, err := primitive.ObjectIDFromHex(order.ID)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}
	doc.ID = primitive.NilObjectID

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// Delete removes an order by its local id.
func (r *MongoOrderRepository) Delete(ctx context.Context, tenantID, orderID string) error {
	objID, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID, "tenantId": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// ListWithExternalID retrieves the tenant's orders that carry a Shopify
// order id, oldest first so reconciliation keeps the earliest copy.
func (r *MongoOrderRepository) ListWithExternalID(ctx context.Context, tenantID string) ([]*domain.Order, error) {
	filter := bson.M{
		"tenantId":        tenantID,
		"externalOrderId": bson.M{"$exists": true, "$ne": ""},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, filter, opts)
}

// ListSellOrders retrieves all of the tenant's sell orders, oldest first.
func (r *MongoOrderRepository) ListSellOrders(ctx context.Context, tenantID string) ([]*domain.Order, error) {
	filter := bson.M{"tenantId": tenantID, "type": domain.OrderTypeSell}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, filter, opts)
}
