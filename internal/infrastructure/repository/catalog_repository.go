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

// MongoCatalogRepository implements CatalogRepository using MongoDB
type MongoCatalogRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

// NewMongoCatalogRepository creates a new MongoDB catalog repository
func NewMongoCatalogRepository(db *mongo.Database) ports.CatalogRepository {
	return &MongoCatalogRepository{
		collection: db.Collection("products"),
		counters:   db.Collection("counters"),
	}
}

func (r *MongoCatalogRepository) findOne(ctx context.Context, filter bson.M) (*domain.Product, error) {
	var doc entity.MongoProductDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetByID retrieves a product by its local id.
func (r *MongoCatalogRepository) GetByID(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	return r.findOne(ctx, bson.M{"_id": objID, "tenantId": tenantID})
}

// GetByExternalID retrieves the product linked to a Shopify product id.
func (r *MongoCatalogRepository) GetByExternalID(ctx context.Context, tenantID, externalProductID string) (*domain.Product, error) {
	if externalProductID == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "externalProductId": externalProductID})
}

// GetBySKU retrieves a product by its SKU within a tenant.
func (r *MongoCatalogRepository) GetBySKU(ctx context.Context, tenantID, sku string) (*domain.Product, error) {
	if sku == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "sku": sku})
}

// GetByName retrieves a product by its exact name within a tenant.
func (r *MongoCatalogRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.Product, error) {
	if name == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "name": name})
}

// GetByExternalVariantID retrieves the product owning the variant linked to
// a Shopify variant id.
func (r *MongoCatalogRepository) GetByExternalVariantID(ctx context.Context, tenantID, externalVariantID string) (*domain.Product, error) {
	if externalVariantID == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "variants.externalVariantId": externalVariantID})
}

// Save upserts a product with its embedded groups and variants in one write.
func (r *MongoCatalogRepository) Save(ctx context.Context, product *domain.Product) error {
	doc := entity.MongoProductDocFromDomain(product)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	if product.ID == "" {
		doc.ID = primitive.NewObjectID()
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		product.ID = doc.ID.Hex()
		return nil
	}

	objID, err := primitive.ObjectIDFromHex(product.ID)
	if err != nil {
		return fmt.Errorf("invalid product id: %w", err)
	}
	doc.ID = primitive.NilObjectID

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": objID}
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// NextSKUSequence atomically increments and returns the tenant's SKU counter,
// used when a remote product arrives with no usable SKU.
func (r *MongoCatalogRepository) NextSKUSequence(ctx context.Context, tenantID string) (int64, error) {
	filter := bson.M{"_id": "sku:" + tenantID}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out struct {
		Seq int64 `bson:"seq"`
	}
	if err := r.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to advance sku sequence: %w", err)
	}
	return out.Seq, nil
}
