package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// defaultVariantTitle is what Shopify names the only variant of a product
// that has no declared options.
const defaultVariantTitle = "Default Title"

// Mapper translates between local catalog records and Shopify's product
// schema. Brand and category lookups are created on demand; image downloads
// go through the injected fetcher and never fail a mapping.
type Mapper struct {
	lookups ports.LookupRepository
	catalog ports.CatalogRepository
	images  ports.ImageFetcher
	logger  zerolog.Logger
}

// NewMapper creates a new entity mapper
func NewMapper(
	lookups ports.LookupRepository,
	catalog ports.CatalogRepository,
	images ports.ImageFetcher,
	logger zerolog.Logger,
) *Mapper {
	return &Mapper{
		lookups: lookups,
		catalog: catalog,
		images:  images,
		logger:  logger,
	}
}

// ApplyRemoteProduct merges a Shopify product onto a local product in place.
// For an existing record it preserves a non-empty SKU and an already stored
// image so manual edits survive re-sync.
func (m *Mapper) ApplyRemoteProduct(ctx context.Context, conn *domain.Connection, remote *shopify.Product, local *domain.Product) error {
	tenantID := conn.TenantID

	local.TenantID = tenantID
	local.Name = remote.Title
	local.Description = remote.BodyHTML
	local.ExternalProductID = strconv.FormatInt(remote.ID, 10)

	brand, err := m.lookups.GetOrCreateBrand(ctx, tenantID, remote.Vendor)
	if err != nil {
		return err
	}
	if brand != nil {
		local.BrandID = brand.ID
	}
	category, err := m.lookups.GetOrCreateCategory(ctx, tenantID, remote.Type)
	if err != nil {
		return err
	}
	if category != nil {
		local.CategoryID = category.ID
	}

	// Download the first image once. An already stored image is kept so
	// re-sync never clobbers a manually uploaded one.
	if local.Image == "" && remote.Image != nil && remote.Image.Src != "" {
		stored, err := m.images.Fetch(ctx, remote.Image.Src)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("tenantId", tenantID).
				Int64("externalProductId", remote.ID).
				Msg("failed to download product image, continuing without it")
		} else {
			local.Image = stored
		}
	}

	if len(remote.Variants) > 1 {
		local.Type = domain.ProductTypeVariable
	} else {
		local.Type = domain.ProductTypeSingle
	}

	sku := strings.TrimSpace(productSKU(remote))
	if local.SKU == "" {
		if sku == "" {
			sku, err = m.fallbackSKU(ctx, tenantID, local.ExternalProductID)
			if err != nil {
				return err
			}
		}
		local.SKU = sku
	}

	if err := m.applyRemoteVariants(conn, remote, local); err != nil {
		return err
	}

	if conn.SyncLocationID != "" && !local.HasLocation(conn.SyncLocationID) {
		local.LocationIDs = append(local.LocationIDs, conn.SyncLocationID)
	}

	now := time.Now()
	local.LastSyncedAt = &now
	return nil
}

// applyRemoteVariants upserts the remote variants onto the local product,
// keyed by external variant id. Variable products group by the first
// declared option name; single products use the sentinel dummy group.
func (m *Mapper) applyRemoteVariants(conn *domain.Connection, remote *shopify.Product, local *domain.Product) error {
	groupName := domain.DummyGroupName
	isDummy := true
	if local.Type == domain.ProductTypeVariable && len(remote.Options) > 0 {
		groupName = remote.Options[0].Name
		isDummy = false
	}

	group := local.GroupByName(groupName)
	if group == nil {
		local.Groups = append(local.Groups, domain.ProductGroup{
			ID:      uuid.NewString(),
			Name:    groupName,
			IsDummy: isDummy,
		})
		group = &local.Groups[len(local.Groups)-1]
	}

	for i := range remote.Variants {
		rv := &remote.Variants[i]
		externalVariantID := strconv.FormatInt(rv.ID, 10)

		variant := local.VariantByExternalID(externalVariantID)
		if variant == nil {
			local.Variants = append(local.Variants, domain.Variant{
				ID:                uuid.NewString(),
				GroupID:           group.ID,
				ExternalVariantID: externalVariantID,
				Inventory:         map[string]float64{},
			})
			variant = &local.Variants[len(local.Variants)-1]
		}

		variant.Name = variantName(rv)
		variant.SubSKU = variantSKU(rv, externalVariantID)
		variant.SellPrice = parsePrice(rv.Price)

		if local.EnableStock && conn.SyncLocationID != "" {
			if variant.Inventory == nil {
				variant.Inventory = map[string]float64{}
			}
			variant.Inventory[conn.SyncLocationID] = float64(rv.InventoryQuantity)
		}
	}
	return nil
}

// ToRemoteProduct builds the Shopify representation of a local product for
// export. Prices are rendered with exactly two fraction digits.
func (m *Mapper) ToRemoteProduct(ctx context.Context, conn *domain.Connection, product *domain.Product) (*shopify.Product, error) {
	remote := &shopify.Product{
		Title:    product.Name,
		BodyHTML: product.Description,
	}
	if product.ExternalProductID != "" {
		id, err := strconv.ParseInt(product.ExternalProductID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid external product id %q: %w", product.ExternalProductID, err)
		}
		remote.ID = id
	}

	var tags []string
	if product.BrandID != "" {
		brand, err := m.lookups.GetBrandByID(ctx, conn.TenantID, product.BrandID)
		if err != nil {
			return nil, err
		}
		if brand != nil {
			remote.Vendor = brand.Name
			tags = append(tags, brand.Name)
		}
	}
	if product.CategoryID != "" {
		category, err := m.lookups.GetCategoryByID(ctx, conn.TenantID, product.CategoryID)
		if err != nil {
			return nil, err
		}
		if category != nil {
			remote.Type = category.Name
			tags = append(tags, category.Name)
		}
	}
	remote.Tags = strings.Join(tags, ", ")

	for i := range product.Variants {
		v := &product.Variants[i]
		rv := shopify.RemoteVariant{
			Title:   v.Name,
			SKU:     v.SubSKU,
			Price:   v.SellPrice.StringFixed(2),
			Option1: v.Name,
		}
		if v.ExternalVariantID != "" {
			id, err := strconv.ParseInt(v.ExternalVariantID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid external variant id %q: %w", v.ExternalVariantID, err)
			}
			rv.ID = id
		}
		if product.Type == domain.ProductTypeSingle {
			rv.Option1 = defaultVariantTitle
		}
		if product.EnableStock && conn.SyncLocationID != "" {
			rv.InventoryQuantity = int(v.Inventory[conn.SyncLocationID])
		}
		remote.Variants = append(remote.Variants, rv)
	}

	// A variable product declares its option axis explicitly; Option1 values
	// alone are not enough for Shopify to accept a multi-variant create.
	if product.Type == domain.ProductTypeVariable {
		option := shopify.Option{Name: domain.DummyGroupName, Position: 1}
		for _, g := range product.Groups {
			if !g.IsDummy {
				option.Name = g.Name
				break
			}
		}
		for i := range remote.Variants {
			option.Values = append(option.Values, remote.Variants[i].Option1)
		}
		remote.Options = []shopify.Option{option}
	}
	return remote, nil
}

// fallbackSKU returns the SHOPIFY-prefixed SKU, or the next value of the
// tenant's SKU sequence when the product has no external id either.
func (m *Mapper) fallbackSKU(ctx context.Context, tenantID, externalProductID string) (string, error) {
	if externalProductID != "" {
		return "SHOPIFY-" + externalProductID, nil
	}
	seq, err := m.catalog.NextSKUSequence(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SKU-%04d", seq), nil
}

func productSKU(remote *shopify.Product) string {
	for i := range remote.Variants {
		if remote.Variants[i].SKU != "" {
			return remote.Variants[i].SKU
		}
	}
	return ""
}

func variantName(rv *shopify.RemoteVariant) string {
	if rv.Option1 != "" && rv.Option1 != defaultVariantTitle {
		return rv.Option1
	}
	if rv.Title != "" && rv.Title != defaultVariantTitle {
		return rv.Title
	}
	return domain.DummyGroupName
}

func variantSKU(rv *shopify.RemoteVariant, externalVariantID string) string {
	if sku := strings.TrimSpace(rv.SKU); sku != "" {
		return sku
	}
	return "SHOPIFY-" + externalVariantID
}

func parsePrice(price string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return decimal.Zero
	}
	return d
}
