package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/metrics"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxSyncIterations caps cursor pagination so a misbehaving remote cursor
// can never produce an unbounded loop.
const maxSyncIterations = 1000

// Upsert outcomes, reported in sync counts and metrics.
const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// ProductSync pulls the remote catalog into local storage, tenant by tenant.
// The same per-product upsert serves bulk sync, webhook ingestion and the
// order engine's on-demand product fetch.
type ProductSync struct {
	resolver connectionResolver
	catalog  ports.CatalogRepository
	mapper   *Mapper
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewProductSync creates a new product sync engine
func NewProductSync(
	connections ports.ConnectionRepository,
	encryption ports.EncryptionService,
	gateways ports.GatewayFactory,
	catalog ports.CatalogRepository,
	mapper *Mapper,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ProductSync {
	return &ProductSync{
		resolver: connectionResolver{
			connections: connections,
			encryption:  encryption,
			gateways:    gateways,
		},
		catalog: catalog,
		mapper:  mapper,
		metrics: m,
		logger:  logger,
	}
}

// SyncAll pulls every remote product for a tenant. Individual product
// failures are counted and logged but never abort the run; the cursor always
// advances past a failed page entry.
func (s *ProductSync) SyncAll(ctx context.Context, tenantID string) (*domain.SyncReport, error) {
	conn, gateway, err := s.resolver.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &domain.SyncReport{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      "products",
		StartedAt: time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
		s.metrics.SyncDuration.WithLabelValues("products").Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	var sinceID int64
	for iter := 0; iter < maxSyncIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := gateway.ListProducts(ctx, shopify.ListOptions{SinceID: sinceID, Limit: shopify.MaxPageSize})
		if err != nil {
			s.metrics.SyncRuns.WithLabelValues("products", "error").Inc()
			return report, fmt.Errorf("failed to fetch product page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		report.Pages++

		for i := range page {
			outcome, _, err := s.UpsertRemote(ctx, conn, &page[i])
			if err != nil {
				report.Failed++
				s.metrics.SyncEntities.WithLabelValues("products", outcomeFailed).Inc()
				s.logger.Error().
					Err(err).
					Str("tenantId", tenantID).
					Int64("externalProductId", page[i].ID).
					Msg("failed to sync product, continuing")
				continue
			}
			s.countOutcome(report, outcome)
			s.metrics.SyncEntities.WithLabelValues("products", outcome).Inc()
		}

		// Advance past every entity in the page, failed ones included,
		// to guarantee forward progress.
		sinceID = page[len(page)-1].ID
		if len(page) < shopify.MaxPageSize {
			break
		}
	}

	now := time.Now()
	conn.LastSyncAt = &now
	if err := s.resolver.connections.Save(ctx, conn); err != nil {
		s.logger.Warn().Err(err).Str("tenantId", tenantID).Msg("failed to stamp last sync time")
	}

	s.metrics.SyncRuns.WithLabelValues("products", "ok").Inc()
	s.logger.Info().
		Str("tenantId", tenantID).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Int("pages", report.Pages).
		Msg("product sync finished")
	return report, nil
}

// UpsertRemote maps one remote product onto local storage. Lookup order is
// external product id first, then SKU; a SKU match backfills the missing
// external id so legacy records heal themselves.
func (s *ProductSync) UpsertRemote(ctx context.Context, conn *domain.Connection, remote *shopify.Product) (string, *domain.Product, error) {
	tenantID := conn.TenantID
	externalID := strconv.FormatInt(remote.ID, 10)

	local, err := s.catalog.GetByExternalID(ctx, tenantID, externalID)
	if err != nil {
		return outcomeFailed, nil, err
	}
	if local == nil {
		local, err = s.catalog.GetBySKU(ctx, tenantID, productSKU(remote))
		if err != nil {
			return outcomeFailed, nil, err
		}
		if local != nil && local.ExternalProductID == "" {
			local.ExternalProductID = externalID
		}
	}
	if local != nil && local.SyncDisabled {
		return outcomeSkipped, local, nil
	}

	outcome := outcomeUpdated
	if local == nil {
		local = &domain.Product{
			TenantID:    tenantID,
			EnableStock: true,
		}
		outcome = outcomeCreated
	}

	if err := s.mapper.ApplyRemoteProduct(ctx, conn, remote, local); err != nil {
		return outcomeFailed, nil, err
	}
	if err := s.catalog.Save(ctx, local); err != nil {
		return outcomeFailed, nil, err
	}
	return outcome, local, nil
}

// SyncOne fetches a single remote product and runs it through the shared
// upsert. Used when an order references a product that has not synced yet.
func (s *ProductSync) SyncOne(ctx context.Context, conn *domain.Connection, gateway ports.ShopifyGateway, externalProductID int64) (*domain.Product, error) {
	remote, err := gateway.GetProduct(ctx, externalProductID)
	if err != nil {
		return nil, err
	}
	_, local, err := s.UpsertRemote(ctx, conn, remote)
	return local, err
}

// ExportProduct pushes one local product to Shopify, creating or updating by
// external product id, then backfills the returned external ids and pushes
// per-location inventory.
func (s *ProductSync) ExportProduct(ctx context.Context, tenantID, productID string) error {
	conn, gateway, err := s.resolver.resolve(ctx, tenantID)
	if err != nil {
		return err
	}

	local, err := s.catalog.GetByID(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	if local == nil {
		return fmt.Errorf("product not found: %s", productID)
	}
	if local.SyncDisabled {
		return fmt.Errorf("sync is disabled for product %s", productID)
	}

	remote, err := s.mapper.ToRemoteProduct(ctx, conn, local)
	if err != nil {
		return err
	}

	var pushed *shopify.Product
	if remote.ID == 0 {
		pushed, err = gateway.CreateProduct(ctx, remote)
	} else {
		pushed, err = gateway.UpdateProduct(ctx, remote)
	}
	if err != nil {
		return err
	}

	s.backfillExternalIDs(local, pushed)
	now := time.Now()
	local.LastSyncedAt = &now
	if err := s.catalog.Save(ctx, local); err != nil {
		return err
	}

	if local.EnableStock {
		if err := s.pushInventory(ctx, conn, gateway, local, pushed); err != nil {
			s.logger.Warn().
				Err(err).
				Str("tenantId", tenantID).
				Str("productId", productID).
				Msg("failed to push inventory levels")
		}
	}

	s.logger.Info().
		Str("tenantId", tenantID).
		Str("productId", productID).
		Int64("externalProductId", pushed.ID).
		Msg("product exported")
	return nil
}

// backfillExternalIDs links the local record to the ids Shopify assigned.
// Variants are matched by SKU since a create response carries no local keys.
func (s *ProductSync) backfillExternalIDs(local *domain.Product, pushed *shopify.Product) {
	local.ExternalProductID = strconv.FormatInt(pushed.ID, 10)
	for i := range pushed.Variants {
		rv := &pushed.Variants[i]
		for j := range local.Variants {
			lv := &local.Variants[j]
			if lv.ExternalVariantID == "" && lv.SubSKU == rv.SKU {
				lv.ExternalVariantID = strconv.FormatInt(rv.ID, 10)
				break
			}
		}
	}
}

// pushInventory sets the available quantity for each exported variant at the
// shop's first active location.
func (s *ProductSync) pushInventory(ctx context.Context, conn *domain.Connection, gateway ports.ShopifyGateway, local *domain.Product, pushed *shopify.Product) error {
	locations, err := gateway.ListLocations(ctx)
	if err != nil {
		return err
	}
	var remoteLocation int64
	for _, loc := range locations {
		if loc.Active {
			remoteLocation = loc.ID
			break
		}
	}
	if remoteLocation == 0 {
		return fmt.Errorf("shop has no active location")
	}

	for i := range pushed.Variants {
		rv := &pushed.Variants[i]
		lv := local.VariantByExternalID(strconv.FormatInt(rv.ID, 10))
		if lv == nil {
			continue
		}
		qty := int(lv.Inventory[conn.SyncLocationID])
		if err := gateway.SetInventoryLevel(ctx, rv.InventoryItemID, remoteLocation, qty); err != nil {
			return err
		}
	}
	return nil
}

// ApplyInventoryUpdate sets a variant's quantity at the tenant's sync
// location from an inventory webhook.
func (s *ProductSync) ApplyInventoryUpdate(ctx context.Context, conn *domain.Connection, externalVariantID string, available float64) error {
	product, err := s.catalog.GetByExternalVariantID(ctx, conn.TenantID, externalVariantID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("no local variant linked to %s", externalVariantID)
	}
	if !product.EnableStock || conn.SyncLocationID == "" {
		return nil
	}
	variant := product.VariantByExternalID(externalVariantID)
	if variant == nil {
		return fmt.Errorf("variant %s missing from product %s", externalVariantID, product.ID)
	}
	if variant.Inventory == nil {
		variant.Inventory = map[string]float64{}
	}
	variant.Inventory[conn.SyncLocationID] = available
	return s.catalog.Save(ctx, product)
}

func (s *ProductSync) countOutcome(report *domain.SyncReport, outcome string) {
	switch outcome {
	case outcomeCreated:
		report.Created++
	case outcomeUpdated:
		report.Updated++
	case outcomeSkipped:
		report.Skipped++
	}
}
