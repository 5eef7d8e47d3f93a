package application

import (
	"context"
	"errors"
	"fmt"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/ports"
)

// ErrNotConnected is returned when a tenant has no Shopify connection.
var ErrNotConnected = errors.New("tenant is not connected to shopify")

// connectionResolver loads a tenant's connection, decrypts the access token
// and opens a gateway. Shared by the sync engines and the connection service.
type connectionResolver struct {
	connections ports.ConnectionRepository
	encryption  ports.EncryptionService
	gateways    ports.GatewayFactory
}

func (r *connectionResolver) resolve(ctx context.Context, tenantID string) (*domain.Connection, ports.ShopifyGateway, error) {
	conn, err := r.connections.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if conn == nil {
		return nil, nil, ErrNotConnected
	}
	token, err := r.encryption.Decrypt(conn.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return conn, r.gateways.NewGateway(conn.ShopDomain, token), nil
}
