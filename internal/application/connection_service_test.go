package application

import (
	"context"
	"testing"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	sessions map[string]*domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessions) Put(_ context.Context, session *domain.Session, _ time.Duration) error {
	f.sessions[session.State] = session
	return nil
}

func (f *fakeSessions) Get(_ context.Context, state string) (*domain.Session, error) {
	s, ok := f.sessions[state]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Delete(_ context.Context, state string) error {
	delete(f.sessions, state)
	return nil
}

func newTestConnectionService(conn *domain.Connection, gateway *fakeGateway) (*ConnectionService, *fakeConnections, *fakeSessions) {
	logger := zerolog.Nop()
	connections := newFakeConnections(conn)
	sessions := newFakeSessions()
	factory := ports.GatewayFactoryFunc(func(string, string) ports.ShopifyGateway { return gateway })
	oauth := shopify.NewOAuthClient("key", "secret", logger)

	svc := NewConnectionService(
		connections,
		plainEncryption{},
		factory,
		oauth,
		sessions,
		[]string{"read_products"},
		"https://app.example/auth/callback",
		"https://app.example",
		"secret",
		logger,
	)
	return svc, connections, sessions
}

func TestStartOAuthStoresSession(t *testing.T) {
	svc, _, sessions := newTestConnectionService(testConnection(), &fakeGateway{})

	authURL, err := svc.StartOAuth(context.Background(), "tenant-2", "new.myshopify.com", "https://pos.example/settings")
	if err != nil {
		t.Fatalf("StartOAuth: %v", err)
	}
	if authURL == "" {
		t.Fatal("empty authorize URL")
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions.sessions))
	}
	for state, session := range sessions.sessions {
		if session.TenantID != "tenant-2" || session.Shop != "new.myshopify.com" {
			t.Errorf("session = %+v", session)
		}
		if session.ReturnURL != "https://pos.example/settings" {
			t.Errorf("ReturnURL = %q", session.ReturnURL)
		}
		if state == "" || session.Expired(time.Now()) {
			t.Errorf("state %q expired immediately", state)
		}
	}
}

func TestConnectionStatus(t *testing.T) {
	conn := testConnection()
	svc, _, _ := newTestConnectionService(conn, &fakeGateway{shop: conn.ShopDomain})

	status, err := svc.Status(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Connected || status.ShopDomain != "demo.myshopify.com" || !status.SyncEnabled {
		t.Errorf("status = %+v", status)
	}

	status, err = svc.Status(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Status for unknown tenant: %v", err)
	}
	if status.Connected {
		t.Error("unknown tenant reported as connected")
	}
}

func TestUpdateSettings(t *testing.T) {
	conn := testConnection()
	svc, _, _ := newTestConnectionService(conn, &fakeGateway{shop: conn.ShopDomain})

	disabled := false
	minDigits := 5
	updated, err := svc.UpdateSettings(context.Background(), "tenant-1", ConnectionSettings{
		SyncEnabled:          &disabled,
		OrderNumberMinDigits: &minDigits,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.SyncEnabled {
		t.Error("SyncEnabled not updated")
	}
	if updated.OrderNumberMinDigits != 5 {
		t.Errorf("OrderNumberMinDigits = %d, want 5", updated.OrderNumberMinDigits)
	}
	if updated.SyncLocationID != "loc-1" {
		t.Errorf("SyncLocationID = %q, omitted field must not change", updated.SyncLocationID)
	}

	if _, err := svc.UpdateSettings(context.Background(), "nobody", ConnectionSettings{}); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectRemovesWebhooksAndConnection(t *testing.T) {
	conn := testConnection()
	gateway := &fakeGateway{
		shop: conn.ShopDomain,
		webhooks: []shopify.Webhook{
			{ID: 1, Topic: domain.TopicOrdersCreate, Address: "https://app.example/webhook/tenant-1"},
			{ID: 2, Topic: domain.TopicOrdersCreate, Address: "https://other.example/webhook/tenant-1"},
		},
	}
	svc, connections, _ := newTestConnectionService(conn, gateway)

	if err := svc.Disconnect(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(gateway.deleted) != 1 || gateway.deleted[0] != 1 {
		t.Errorf("deleted webhooks = %v, only this app's registration may go", gateway.deleted)
	}
	if got, _ := connections.GetByTenantID(context.Background(), "tenant-1"); got != nil {
		t.Error("connection still present after disconnect")
	}
}

func TestTestConnection(t *testing.T) {
	conn := testConnection()
	gateway := &fakeGateway{shop: conn.ShopDomain, shopInfo: &shopify.Shop{Name: "Demo", Domain: conn.ShopDomain}}
	svc, _, _ := newTestConnectionService(conn, gateway)

	shop, err := svc.TestConnection(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if shop.Name != "Demo" {
		t.Errorf("shop = %+v", shop)
	}

	if _, err := svc.TestConnection(context.Background(), "nobody"); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
