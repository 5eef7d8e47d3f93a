package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/metrics"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// rateLimitPageRetryDelay is how long a bulk order sync waits before
// refetching a page that failed with a rate-limit error.
const rateLimitPageRetryDelay = 5 * time.Second

// OrderSync pulls remote orders into local storage. The same per-order
// upsert serves scheduled bulk sync and single-order webhook ingestion, so
// the two paths cannot drift apart.
type OrderSync struct {
	resolver   connectionResolver
	orders     ports.OrderRepository
	customers  ports.CustomerRepository
	catalog    ports.CatalogRepository
	products   *ProductSync
	metrics    *metrics.Metrics
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewOrderSync creates a new order sync engine
func NewOrderSync(
	connections ports.ConnectionRepository,
	encryption ports.EncryptionService,
	gateways ports.GatewayFactory,
	orders ports.OrderRepository,
	customers ports.CustomerRepository,
	catalog ports.CatalogRepository,
	products *ProductSync,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *OrderSync {
	return &OrderSync{
		resolver: connectionResolver{
			connections: connections,
			encryption:  encryption,
			gateways:    gateways,
		},
		orders:     orders,
		customers:  customers,
		catalog:    catalog,
		products:   products,
		metrics:    m,
		retryDelay: rateLimitPageRetryDelay,
		logger:     logger,
	}
}

// SyncAll pulls every remote order for a tenant. Rate-limited page fetches
// are retried after a pause; any other fetch error stops pagination
// gracefully since already-synced orders are kept. Per-order failures are
// counted and never abort the run.
func (s *OrderSync) SyncAll(ctx context.Context, tenantID string) (*domain.SyncReport, error) {
	conn, gateway, err := s.resolver.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &domain.SyncReport{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      "orders",
		StartedAt: time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
		s.metrics.SyncDuration.WithLabelValues("orders").Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	var sinceID int64
	for iter := 0; iter < maxSyncIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := gateway.ListOrders(ctx, shopify.ListOptions{
			SinceID: sinceID,
			Limit:   shopify.MaxPageSize,
			Status:  "any",
		})
		if err != nil {
			if isRateLimitError(err) {
				s.metrics.APIRetries.WithLabelValues("order_page_rate_limit").Inc()
				s.logger.Warn().
					Str("tenantId", tenantID).
					Int64("sinceId", sinceID).
					Msg("order page fetch rate limited, retrying")
				select {
				case <-ctx.Done():
					return report, ctx.Err()
				case <-time.After(s.retryDelay):
				}
				continue
			}
			s.logger.Error().
				Err(err).
				Str("tenantId", tenantID).
				Int64("sinceId", sinceID).
				Msg("order page fetch failed, stopping pagination")
			break
		}
		if len(page) == 0 {
			break
		}
		report.Pages++

		for i := range page {
			outcome, err := s.UpsertRemoteOrder(ctx, conn, gateway, &page[i])
			if err != nil {
				report.Failed++
				s.metrics.SyncEntities.WithLabelValues("orders", outcomeFailed).Inc()
				s.logger.Error().
					Err(err).
					Str("tenantId", tenantID).
					Int64("externalOrderId", page[i].ID).
					Msg("failed to sync order, continuing")
				continue
			}
			switch outcome {
			case outcomeCreated:
				report.Created++
			case outcomeSkipped:
				report.Skipped++
			}
			s.metrics.SyncEntities.WithLabelValues("orders", outcome).Inc()
		}

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

	s.metrics.SyncRuns.WithLabelValues("orders", "ok").Inc()
	s.logger.Info().
		Str("tenantId", tenantID).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("pages", report.Pages).
		Msg("order sync finished")
	return report, nil
}

// UpsertRemoteOrder creates the local order for one remote order, or skips
// when it already exists. Dedup runs on the external order id first, then on
// the numeric order number, backfilling the missing id onto a legacy match.
func (s *OrderSync) UpsertRemoteOrder(ctx context.Context, conn *domain.Connection, gateway ports.ShopifyGateway, remote *shopify.Order) (string, error) {
	tenantID := conn.TenantID
	externalOrderID := strconv.FormatInt(remote.ID, 10)
	orderNumber := strconv.FormatInt(remote.OrderNumber, 10)

	existing, err := s.orders.GetByExternalID(ctx, tenantID, externalOrderID)
	if err != nil {
		return outcomeFailed, err
	}
	if existing != nil {
		s.logger.Debug().
			Str("tenantId", tenantID).
			Str("externalOrderId", externalOrderID).
			Msg("order already synced, skipping")
		return outcomeSkipped, nil
	}

	// Order numbers are globally unique per shop, so a match here is the
	// same order saved by an earlier run that lost the external id link.
	if remote.OrderNumber > 0 {
		legacy, err := s.orders.GetSellByInvoiceNo(ctx, tenantID, orderNumber)
		if err != nil {
			return outcomeFailed, err
		}
		if legacy != nil {
			if legacy.ExternalOrderID == "" {
				legacy.ExternalOrderID = externalOrderID
				if err := s.orders.Save(ctx, legacy); err != nil {
					return outcomeFailed, err
				}
			}
			s.logger.Debug().
				Str("tenantId", tenantID).
				Str("invoiceNo", orderNumber).
				Msg("order matched by order number, skipping")
			return outcomeSkipped, nil
		}
	}

	lines, err := s.buildLines(ctx, conn, gateway, remote)
	if err != nil {
		return outcomeFailed, err
	}
	if len(lines) == 0 {
		return outcomeFailed, fmt.Errorf("order %s produced no valid lines", externalOrderID)
	}

	// The customer is resolved only once the lines are known good, so a
	// rejected order leaves no half-created records behind.
	customerID, err := s.resolveCustomer(ctx, tenantID, remote)
	if err != nil {
		return outcomeFailed, err
	}

	status := domain.MapFinancialStatus(remote.FinancialStatus)
	if remote.CancelledAt != nil {
		status = domain.OrderStatusCancelled
	}

	transactionDate := remote.CreatedAt
	if remote.ProcessedAt != nil {
		transactionDate = *remote.ProcessedAt
	}

	order := &domain.Order{
		TenantID:            tenantID,
		LocationID:          conn.SyncLocationID,
		Type:                domain.OrderTypeSell,
		Status:              status,
		CustomerID:          customerID,
		InvoiceNo:           orderNumber,
		ExternalOrderID:     externalOrderID,
		TransactionDate:     transactionDate,
		SubTotal:            parsePrice(remote.SubtotalPrice),
		DiscountAmount:      parsePrice(remote.TotalDiscounts),
		ShippingCharges:     shippingTotal(remote),
		FinalTotal:          parsePrice(remote.TotalPrice),
		Lines:               lines,
		AdditionalNotes:     remote.Note,
		PaymentStatus:       remote.FinancialStatus,
		ExternalOrderSource: "shopify",
	}
	if err := s.orders.Save(ctx, order); err != nil {
		// A concurrent webhook or sync run inserted the same order between
		// the existence checks and this write; the unique index caught it.
		if errors.Is(err, ports.ErrDuplicate) {
			s.logger.Debug().
				Str("tenantId", tenantID).
				Str("externalOrderId", externalOrderID).
				Msg("order inserted concurrently, skipping")
			return outcomeSkipped, nil
		}
		return outcomeFailed, err
	}

	s.logger.Info().
		Str("tenantId", tenantID).
		Str("externalOrderId", externalOrderID).
		Str("invoiceNo", orderNumber).
		Str("status", string(status)).
		Msg("order created")
	return outcomeCreated, nil
}

// resolveCustomer matches the order's customer by email, creating one when
// absent. An existing customer only gains fields it is missing; data already
// present is never overwritten.
func (s *OrderSync) resolveCustomer(ctx context.Context, tenantID string, remote *shopify.Order) (string, error) {
	rc := remote.Customer
	email := remote.Email
	if rc != nil && rc.Email != "" {
		email = rc.Email
	}

	address := remote.ShippingAddress
	if address == nil {
		address = remote.BillingAddress
	}

	existing, err := s.customers.GetByEmail(ctx, tenantID, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if backfillCustomer(existing, rc, address) {
			if err := s.customers.Save(ctx, existing); err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}

	customer := &domain.Customer{
		TenantID: tenantID,
		Email:    email,
		Mobile:   "",
	}
	if rc != nil {
		customer.FirstName = rc.FirstName
		customer.LastName = rc.LastName
		if rc.Phone != "" {
			customer.Mobile = rc.Phone
		}
	}
	if customer.FirstName == "" && customer.LastName == "" {
		customer.FirstName = "Shopify"
		customer.LastName = "Customer"
	}
	applyAddress(customer, address)
	if err := s.customers.Save(ctx, customer); err != nil {
		return "", err
	}
	return customer.ID, nil
}

// backfillCustomer fills only the empty fields of an existing customer.
func backfillCustomer(c *domain.Customer, rc *shopify.RemoteCustomer, address *shopify.Address) bool {
	changed := false
	if rc != nil {
		if c.FirstName == "" && rc.FirstName != "" {
			c.FirstName = rc.FirstName
			changed = true
		}
		if c.LastName == "" && rc.LastName != "" {
			c.LastName = rc.LastName
			changed = true
		}
		if c.Mobile == "" && rc.Phone != "" {
			c.Mobile = rc.Phone
			changed = true
		}
	}
	if address != nil {
		if c.AddressLine1 == "" && address.Address1 != "" {
			applyAddress(c, address)
			changed = true
		}
	}
	return changed
}

func applyAddress(c *domain.Customer, address *shopify.Address) {
	if address == nil {
		return
	}
	c.AddressLine1 = address.Address1
	c.AddressLine2 = address.Address2
	c.City = address.City
	c.State = address.Province
	c.Country = address.Country
	c.ZipCode = address.Zip
	if c.Mobile == "" && address.Phone != "" {
		c.Mobile = address.Phone
	}
	c.ShippingAddress = formatAddress(address)
}

func formatAddress(address *shopify.Address) string {
	parts := []string{address.Address1, address.Address2, address.City, address.Province, address.Country, address.Zip}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// buildLines resolves each remote line item to a local product and variant.
// A line whose product cannot be fetched is skipped; a line referencing a
// deleted remote product attaches to a locally created placeholder.
func (s *OrderSync) buildLines(ctx context.Context, conn *domain.Connection, gateway ports.ShopifyGateway, remote *shopify.Order) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	for i := range remote.LineItems {
		item := &remote.LineItems[i]

		var product *domain.Product
		var err error
		if item.ProductID == 0 {
			product, err = s.placeholderProduct(ctx, conn, item)
			if err != nil {
				return nil, err
			}
		} else {
			product, err = s.resolveLineProduct(ctx, conn, gateway, item)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("tenantId", conn.TenantID).
					Int64("externalProductId", item.ProductID).
					Msg("failed to resolve line product, skipping line")
				continue
			}
		}

		variant, err := s.resolveLineVariant(ctx, product, item)
		if err != nil {
			return nil, err
		}

		unitPrice := parsePrice(item.Price)
		lines = append(lines, domain.OrderLine{
			ID:        uuid.NewString(),
			ProductID: product.ID,
			VariantID: variant.ID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			LineTotal: unitPrice.Mul(decimal.NewFromFloat(item.Quantity)),
			Note:      item.Title,
		})
	}
	return lines, nil
}

// resolveLineProduct finds the local product for a line item, fetching and
// upserting it from Shopify when it has not synced yet.
func (s *OrderSync) resolveLineProduct(ctx context.Context, conn *domain.Connection, gateway ports.ShopifyGateway, item *shopify.LineItem) (*domain.Product, error) {
	externalProductID := strconv.FormatInt(item.ProductID, 10)

	product, err := s.catalog.GetByExternalID(ctx, conn.TenantID, externalProductID)
	if err != nil {
		return nil, err
	}
	if product != nil {
		return product, nil
	}

	product, err = s.products.SyncOne(ctx, conn, gateway, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync missing product %d: %w", item.ProductID, err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %d not found after sync", item.ProductID)
	}
	return product, nil
}

// placeholderProduct finds or creates the local stand-in for a remote
// product that was deleted from the shop, so the order stays resolvable.
func (s *OrderSync) placeholderProduct(ctx context.Context, conn *domain.Connection, item *shopify.LineItem) (*domain.Product, error) {
	name := fmt.Sprintf("%s (Deleted from Shopify)", item.Title)
	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		sku = fmt.Sprintf("DELETED-%d", item.ID)
	}

	existing, err := s.catalog.GetBySKU(ctx, conn.TenantID, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	existing, err = s.catalog.GetByName(ctx, conn.TenantID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	groupID := uuid.NewString()
	product := &domain.Product{
		TenantID:      conn.TenantID,
		Name:          name,
		SKU:           sku,
		Type:          domain.ProductTypeSingle,
		EnableStock:   false,
		NotForSelling: true,
		LocationIDs:   []string{conn.SyncLocationID},
		Groups: []domain.ProductGroup{
			{ID: groupID, Name: domain.DummyGroupName, IsDummy: true},
		},
		Variants: []domain.Variant{
			{
				ID:        uuid.NewString(),
				GroupID:   groupID,
				Name:      domain.DummyGroupName,
				SubSKU:    sku,
				SellPrice: parsePrice(item.Price),
				Inventory: map[string]float64{},
			},
		},
	}
	if err := s.catalog.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("tenantId", conn.TenantID).
		Str("sku", sku).
		Msg("placeholder product created for deleted remote product")
	return product, nil
}

// resolveLineVariant picks the variant for a line item: exact external id
// match, then the product's first variant, then a synthesized default.
func (s *OrderSync) resolveLineVariant(ctx context.Context, product *domain.Product, item *shopify.LineItem) (*domain.Variant, error) {
	if item.VariantID != 0 {
		if v := product.VariantByExternalID(strconv.FormatInt(item.VariantID, 10)); v != nil {
			return v, nil
		}
	}
	if v := product.FirstVariant(); v != nil {
		return v, nil
	}

	groupID := uuid.NewString()
	if len(product.Groups) == 0 {
		product.Groups = append(product.Groups, domain.ProductGroup{
			ID:      groupID,
			Name:    domain.DummyGroupName,
			IsDummy: true,
		})
	} else {
		groupID = product.Groups[0].ID
	}
	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		sku = product.SKU
	}
	product.Variants = append(product.Variants, domain.Variant{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Name:      domain.DummyGroupName,
		SubSKU:    sku,
		SellPrice: parsePrice(item.Price),
		Inventory: map[string]float64{},
	})
	if err := s.catalog.Save(ctx, product); err != nil {
		return nil, err
	}
	return &product.Variants[len(product.Variants)-1], nil
}

// MarkPaid finalizes the local order linked to a remote order id.
func (s *OrderSync) MarkPaid(ctx context.Context, tenantID string, externalOrderID int64) error {
	return s.setStatus(ctx, tenantID, externalOrderID, domain.OrderStatusFinal)
}

// MarkCancelled cancels the local order linked to a remote order id.
func (s *OrderSync) MarkCancelled(ctx context.Context, tenantID string, externalOrderID int64) error {
	return s.setStatus(ctx, tenantID, externalOrderID, domain.OrderStatusCancelled)
}

func (s *OrderSync) setStatus(ctx context.Context, tenantID string, externalOrderID int64, status domain.OrderStatus) error {
	order, err := s.orders.GetByExternalID(ctx, tenantID, strconv.FormatInt(externalOrderID, 10))
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("no local order linked to external order %d", externalOrderID)
	}
	if order.Status == status {
		return nil
	}
	order.Status = status
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}
	s.logger.Info().
		Str("tenantId", tenantID).
		Int64("externalOrderId", externalOrderID).
		Str("status", string(status)).
		Msg("order status updated")
	return nil
}

// UpdateStatusFromRemote re-maps the status of an already linked local order
// from the remote order's current state. Used by orders/updated webhooks.
func (s *OrderSync) UpdateStatusFromRemote(ctx context.Context, tenantID string, remote *shopify.Order) error {
	status := domain.MapFinancialStatus(remote.FinancialStatus)
	if remote.CancelledAt != nil {
		status = domain.OrderStatusCancelled
	}
	return s.setStatus(ctx, tenantID, remote.ID, status)
}

func shippingTotal(remote *shopify.Order) decimal.Decimal {
	total := decimal.Zero
	for _, line := range remote.ShippingLines {
		total = total.Add(parsePrice(line.Price))
	}
	return total
}

// isRateLimitError classifies a page fetch failure as a 429, either via the
// typed API error or a rate-limit mention in the message.
func isRateLimitError(err error) bool {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
