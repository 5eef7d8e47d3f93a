package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// sessionTTL bounds how long an OAuth flow may stay pending.
const sessionTTL = 10 * time.Minute

// webhookTopics are the subscriptions registered on connect.
var webhookTopics = []string{
	domain.TopicOrdersCreate,
	domain.TopicOrdersUpdated,
	domain.TopicOrdersPaid,
	domain.TopicOrdersCancelled,
	domain.TopicInventoryLevelsUpdate,
	domain.TopicProductsCreate,
	domain.TopicProductsUpdate,
}

// ConnectionStatus is the connection state reported to the POS frontend.
type ConnectionStatus struct {
	Connected   bool       `json:"connected"`
	ShopDomain  string     `json:"shop_domain,omitempty"`
	SyncEnabled bool       `json:"sync_enabled"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
}

// ConnectionSettings are the tenant-tunable sync options.
type ConnectionSettings struct {
	SyncEnabled          *bool   `json:"sync_enabled,omitempty"`
	SyncLocationID       *string `json:"sync_location_id,omitempty"`
	OrderNumberMinDigits *int    `json:"order_number_min_digits,omitempty"`
}

// ConnectionService owns the tenant's Shopify credentials: the OAuth flow,
// webhook registration, connection tests and settings updates. Tokens are
// encrypted before they reach storage.
type ConnectionService struct {
	resolver       connectionResolver
	oauth          *shopify.OAuthClient
	sessions       ports.SessionStore
	scopes         []string
	redirectURI    string
	webhookBaseURL string
	webhookSecret  string
	logger         zerolog.Logger
}

// NewConnectionService creates a new connection service
func NewConnectionService(
	connections ports.ConnectionRepository,
	encryption ports.EncryptionService,
	gateways ports.GatewayFactory,
	oauth *shopify.OAuthClient,
	sessions ports.SessionStore,
	scopes []string,
	redirectURI string,
	webhookBaseURL string,
	webhookSecret string,
	logger zerolog.Logger,
) *ConnectionService {
	return &ConnectionService{
		resolver: connectionResolver{
			connections: connections,
			encryption:  encryption,
			gateways:    gateways,
		},
		oauth:          oauth,
		sessions:       sessions,
		scopes:         scopes,
		redirectURI:    redirectURI,
		webhookBaseURL: webhookBaseURL,
		webhookSecret:  webhookSecret,
		logger:         logger,
	}
}

// StartOAuth begins the authorization flow for a tenant and returns the URL
// to redirect the merchant to. The state token is held in the session store
// until the callback.
func (s *ConnectionService) StartOAuth(ctx context.Context, tenantID, shop, returnURL string) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	session := &domain.Session{
		State:     state,
		Shop:      shop,
		TenantID:  tenantID,
		ReturnURL: returnURL,
		ExpiresAt: time.Now().Add(sessionTTL),
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Put(ctx, session, sessionTTL); err != nil {
		return "", err
	}

	authURL := s.oauth.AuthorizeURL(shop, s.scopes, s.redirectURI, state)
	s.logger.Info().
		Str("tenantId", tenantID).
		Str("shop", shop).
		Msg("oauth flow started")
	return authURL, nil
}

// CompleteOAuth handles the callback: verifies the HMAC, validates the state
// token, exchanges the code, saves the encrypted connection and registers
// webhooks. It returns the connection and the return URL from the session.
func (s *ConnectionService) CompleteOAuth(ctx context.Context, callbackURL *url.URL) (*domain.Connection, string, error) {
	if !s.oauth.VerifyCallback(callbackURL) {
		return nil, "", fmt.Errorf("oauth callback hmac verification failed")
	}

	query := callbackURL.Query()
	state := query.Get("state")
	shop := query.Get("shop")
	code := query.Get("code")
	if state == "" || shop == "" || code == "" {
		return nil, "", fmt.Errorf("oauth callback missing required parameters")
	}

	session, err := s.sessions.Get(ctx, state)
	if err != nil {
		return nil, "", fmt.Errorf("invalid oauth state: %w", err)
	}
	if session.Shop != shop || session.Expired(time.Now()) {
		return nil, "", fmt.Errorf("oauth state does not match callback")
	}
	defer func() {
		if err := s.sessions.Delete(ctx, state); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete oauth session")
		}
	}()

	token, err := s.oauth.ExchangeToken(ctx, shop, code)
	if err != nil {
		return nil, "", err
	}
	encrypted, err := s.resolver.encryption.Encrypt(token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	conn, err := domain.NewConnection(session.TenantID, shop, encrypted, s.webhookSecret, "")
	if err != nil {
		return nil, "", err
	}
	if err := s.resolver.connections.Save(ctx, conn); err != nil {
		return nil, "", err
	}

	gateway := s.resolver.gateways.NewGateway(shop, token)
	if err := s.registerWebhooks(ctx, gateway, session.TenantID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("tenantId", session.TenantID).
			Msg("webhook registration incomplete")
	}

	s.logger.Info().
		Str("tenantId", session.TenantID).
		Str("shop", shop).
		Msg("shopify connected")
	return conn, session.ReturnURL, nil
}

// registerWebhooks subscribes the tenant's webhook endpoint to every topic
// the dispatcher handles, skipping topics already registered.
func (s *ConnectionService) registerWebhooks(ctx context.Context, gateway ports.ShopifyGateway, tenantID string) error {
	address := fmt.Sprintf("%s/webhook/%s", s.webhookBaseURL, tenantID)

	existing, err := gateway.ListWebhooks(ctx)
	if err != nil {
		return err
	}
	registered := make(map[string]bool, len(existing))
	for _, w := range existing {
		if w.Address == address {
			registered[w.Topic] = true
		}
	}

	for _, topic := range webhookTopics {
		if registered[topic] {
			continue
		}
		if _, err := gateway.CreateWebhook(ctx, topic, address); err != nil {
			return fmt.Errorf("failed to register %s webhook: %w", topic, err)
		}
	}
	return nil
}

// Disconnect removes the tenant's webhooks from the shop and deletes the
// stored connection.
func (s *ConnectionService) Disconnect(ctx context.Context, tenantID string) error {
	conn, gateway, err := s.resolver.resolve(ctx, tenantID)
	if err != nil {
		return err
	}

	address := fmt.Sprintf("%s/webhook/%s", s.webhookBaseURL, tenantID)
	webhooks, err := gateway.ListWebhooks(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenantId", tenantID).Msg("failed to list webhooks on disconnect")
	} else {
		for _, w := range webhooks {
			if w.Address != address {
				continue
			}
			if err := gateway.DeleteWebhook(ctx, w.ID); err != nil {
				s.logger.Warn().
					Err(err).
					Int64("webhookId", w.ID).
					Msg("failed to delete webhook on disconnect")
			}
		}
	}

	if err := s.resolver.connections.Delete(ctx, tenantID); err != nil {
		return err
	}
	s.logger.Info().
		Str("tenantId", tenantID).
		Str("shop", conn.ShopDomain).
		Msg("shopify disconnected")
	return nil
}

// TestConnection checks the stored credentials against the live shop.
func (s *ConnectionService) TestConnection(ctx context.Context, tenantID string) (*shopify.Shop, error) {
	_, gateway, err := s.resolver.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return gateway.GetShop(ctx)
}

// Status reports the tenant's connection state.
func (s *ConnectionService) Status(ctx context.Context, tenantID string) (*ConnectionStatus, error) {
	conn, err := s.resolver.connections.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &ConnectionStatus{Connected: false}, nil
	}
	connectedAt := conn.ConnectedAt
	return &ConnectionStatus{
		Connected:   true,
		ShopDomain:  conn.ShopDomain,
		SyncEnabled: conn.SyncEnabled,
		ConnectedAt: &connectedAt,
		LastSyncAt:  conn.LastSyncAt,
	}, nil
}

// UpdateSettings applies the provided fields to the tenant's connection.
func (s *ConnectionService) UpdateSettings(ctx context.Context, tenantID string, settings ConnectionSettings) (*domain.Connection, error) {
	conn, err := s.resolver.connections.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}
	if settings.SyncEnabled != nil {
		conn.SyncEnabled = *settings.SyncEnabled
	}
	if settings.SyncLocationID != nil {
		conn.SyncLocationID = *settings.SyncLocationID
	}
	if settings.OrderNumberMinDigits != nil {
		conn.OrderNumberMinDigits = *settings.OrderNumberMinDigits
	}
	if err := s.resolver.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
