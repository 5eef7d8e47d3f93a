package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/metrics"
	"pos-shopify-sync/internal/infrastructure/pubsub"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Boundary errors mapped to HTTP statuses by the webhook handler.
var (
	ErrUnknownTenant    = errors.New("unknown tenant")
	ErrNoWebhookSecret  = errors.New("webhook secret not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// backgroundSyncTimeout bounds the product sync a product webhook kicks off.
const backgroundSyncTimeout = 10 * time.Minute

// WebhookDispatcher verifies inbound Shopify webhooks and routes them to the
// same engine upserts the bulk sync uses. Once a signature verifies, the
// dispatcher reports success regardless of downstream outcome so Shopify
// never retries application-level failures.
type WebhookDispatcher struct {
	resolver connectionResolver
	orders   *OrderSync
	products *ProductSync
	bus      *pubsub.EventBus
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(
	connections ports.ConnectionRepository,
	encryption ports.EncryptionService,
	gateways ports.GatewayFactory,
	orders *OrderSync,
	products *ProductSync,
	bus *pubsub.EventBus,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *WebhookDispatcher {
	return &WebhookDispatcher{
		resolver: connectionResolver{
			connections: connections,
			encryption:  encryption,
			gateways:    gateways,
		},
		orders:   orders,
		products: products,
		bus:      bus,
		metrics:  m,
		logger:   logger,
	}
}

// Handle verifies and processes one webhook. It returns ErrUnknownTenant,
// ErrNoWebhookSecret or ErrInvalidSignature for boundary rejections; any
// error after verification is logged and swallowed.
func (d *WebhookDispatcher) Handle(ctx context.Context, tenantID, topic string, payload []byte, signature string) error {
	conn, err := d.resolver.connections.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrUnknownTenant
	}
	if conn.WebhookSecret == "" {
		return ErrNoWebhookSecret
	}

	verifier := shopify.NewWebhookVerifier(conn.WebhookSecret)
	if !verifier.Verify(payload, signature) {
		return ErrInvalidSignature
	}

	d.metrics.WebhooksTotal.WithLabelValues(topic).Inc()
	d.bus.Publish(&domain.WebhookEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Topic:      topic,
		ShopDomain: conn.ShopDomain,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})

	if err := d.process(ctx, conn, topic, payload); err != nil {
		d.metrics.WebhookFailures.WithLabelValues(topic).Inc()
		d.logger.Error().
			Err(err).
			Str("tenantId", tenantID).
			Str("topic", topic).
			Msg("webhook processing failed")
	}
	return nil
}

func (d *WebhookDispatcher) process(ctx context.Context, conn *domain.Connection, topic string, payload []byte) error {
	switch topic {
	case domain.TopicOrdersCreate, domain.TopicOrdersUpdated:
		return d.processOrder(ctx, conn, topic, payload)

	case domain.TopicOrdersPaid:
		orderID, err := orderIDFromPayload(payload)
		if err != nil {
			return err
		}
		return d.orders.MarkPaid(ctx, conn.TenantID, orderID)

	case domain.TopicOrdersCancelled:
		orderID, err := orderIDFromPayload(payload)
		if err != nil {
			return err
		}
		return d.orders.MarkCancelled(ctx, conn.TenantID, orderID)

	case domain.TopicInventoryLevelsUpdate:
		return d.processInventory(ctx, conn, payload)

	case domain.TopicProductsCreate, domain.TopicProductsUpdate:
		// Product webhooks trigger a full catalog pull in the background.
		go d.runProductSync(conn.TenantID)
		return nil

	default:
		d.logger.Info().
			Str("tenantId", conn.TenantID).
			Str("topic", topic).
			Msg("ignoring webhook with unhandled topic")
		return nil
	}
}

func (d *WebhookDispatcher) processOrder(ctx context.Context, conn *domain.Connection, topic string, payload []byte) error {
	var remote shopify.Order
	if err := json.Unmarshal(payload, &remote); err != nil {
		return fmt.Errorf("failed to parse order payload: %w", err)
	}

	_, gateway, err := d.resolver.resolve(ctx, conn.TenantID)
	if err != nil {
		return err
	}

	outcome, err := d.orders.UpsertRemoteOrder(ctx, conn, gateway, &remote)
	if err != nil {
		return err
	}
	if outcome == outcomeSkipped && topic == domain.TopicOrdersUpdated {
		return d.orders.UpdateStatusFromRemote(ctx, conn.TenantID, &remote)
	}
	return nil
}

func (d *WebhookDispatcher) processInventory(ctx context.Context, conn *domain.Connection, payload []byte) error {
	var update struct {
		InventoryItemID int64   `json:"inventory_item_id"`
		VariantID       int64   `json:"variant_id"`
		Available       float64 `json:"available"`
	}
	if err := json.Unmarshal(payload, &update); err != nil {
		return fmt.Errorf("failed to parse inventory payload: %w", err)
	}
	externalVariantID := update.VariantID
	if externalVariantID == 0 {
		externalVariantID = update.InventoryItemID
	}
	return d.products.ApplyInventoryUpdate(ctx, conn, strconv.FormatInt(externalVariantID, 10), update.Available)
}

func (d *WebhookDispatcher) runProductSync(tenantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundSyncTimeout)
	defer cancel()
	if _, err := d.products.SyncAll(ctx, tenantID); err != nil {
		d.logger.Error().
			Err(err).
			Str("tenantId", tenantID).
			Msg("product sync triggered by webhook failed")
	}
}

func orderIDFromPayload(payload []byte) (int64, error) {
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("failed to parse order payload: %w", err)
	}
	if body.ID == 0 {
		return 0, fmt.Errorf("order payload has no id")
	}
	return body.ID, nil
}
