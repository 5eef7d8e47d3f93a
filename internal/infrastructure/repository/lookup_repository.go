package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLookupRepository implements LookupRepository using MongoDB. Brands and
// categories are created on first reference during product sync.
type MongoLookupRepository struct {
	brands     *mongo.Collection
	categories *mongo.Collection
}

// NewMongoLookupRepository creates a new MongoDB lookup repository
func NewMongoLookupRepository(db *mongo.Database) ports.LookupRepository {
	return &MongoLookupRepository{
		brands:     db.Collection("brands"),
		categories: db.Collection("categories"),
	}
}

// GetOrCreateBrand resolves a brand by name, creating it when absent. The
// upsert is atomic so concurrent syncs never create duplicates.
func (r *MongoLookupRepository) GetOrCreateBrand(ctx context.Context, tenantID, name string) (*domain.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	filter := bson.M{"tenantId": tenantID, "name": name}
	update := bson.M{
		"$setOnInsert": bson.M{
			"tenantId":  tenantID,
			"name":      name,
			"createdAt": time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		ID   primitive.ObjectID `bson:"_id"`
		Name string             `bson:"name"`
	}
	if err := r.brands.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to get or create brand %q: %w", name, err)
	}
	return &domain.Brand{ID: doc.ID.Hex(), TenantID: tenantID, Name: doc.Name}, nil
}

// GetOrCreateCategory resolves a category by name, creating it when absent.
func (r *MongoLookupRepository) GetOrCreateCategory(ctx context.Context, tenantID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	filter := bson.M{"tenantId": tenantID, "name": name}
	update := bson.M{
		"$setOnInsert": bson.M{
			"tenantId":  tenantID,
			"name":      name,
			"shortCode": shortCode(name),
			"createdAt": time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		ID        primitive.ObjectID `bson:"_id"`
		Name      string             `bson:"name"`
		ShortCode string             `bson:"shortCode"`
	}
	if err := r.categories.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to get or create category %q: %w", name, err)
	}
	return &domain.Category{ID: doc.ID.Hex(), TenantID: tenantID, Name: doc.Name, ShortCode: doc.ShortCode}, nil
}

// GetBrandByID retrieves a brand by id, or (nil, nil) when absent.
func (r *MongoLookupRepository) GetBrandByID(ctx context.Context, tenantID, brandID string) (*domain.Brand, error) {
	objID, err := primitive.ObjectIDFromHex(brandID)
	if err != nil {
		return nil, nil
	}
	var doc struct {
		ID   primitive.ObjectID `bson:"_id"`
		Name string             `bson:"name"`
	}
	err = r.brands.FindOne(ctx, bson.M{"_id": objID, "tenantId": tenantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &domain.Brand{ID: doc.ID.Hex(), TenantID: tenantID, Name: doc.Name}, nil
}

// GetCategoryByID retrieves a category by id, or (nil, nil) when absent.
func (r *MongoLookupRepository) GetCategoryByID(ctx context.Context, tenantID, categoryID string) (*domain.Category, error) {
	objID, err := primitive.ObjectIDFromHex(categoryID)
	if err != nil {
		return nil, nil
	}
	var doc struct {
		ID        primitive.ObjectID `bson:"_id"`
		Name      string             `bson:"name"`
		ShortCode string             `bson:"shortCode"`
	}
	err = r.categories.FindOne(ctx, bson.M{"_id": objID, "tenantId": tenantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &domain.Category{ID: doc.ID.Hex(), TenantID: tenantID, Name: doc.Name, ShortCode: doc.ShortCode}, nil
}

func shortCode(name string) string {
	code := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	if len(code) > 20 {
		code = code[:20]
	}
	return code
}
