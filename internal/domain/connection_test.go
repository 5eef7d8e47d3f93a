package domain

import "testing"

func TestNewConnection(t *testing.T) {
	conn, err := NewConnection("t1", "demo.myshopify.com", "enc-token", "secret", "loc-1")
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	if !conn.SyncEnabled {
		t.Error("new connections must default to sync enabled")
	}
	if conn.OrderNumberMinDigits != DefaultOrderNumberMinDigits {
		t.Errorf("OrderNumberMinDigits = %d, want %d", conn.OrderNumberMinDigits, DefaultOrderNumberMinDigits)
	}
	if conn.ConnectedAt.IsZero() {
		t.Error("ConnectedAt not stamped")
	}
}

func TestConnectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		conn    Connection
		wantErr bool
	}{
		{"valid", Connection{TenantID: "t1", ShopDomain: "demo.myshopify.com", AccessToken: "x"}, false},
		{"missing tenant", Connection{ShopDomain: "demo.myshopify.com", AccessToken: "x"}, true},
		{"missing shop", Connection{TenantID: "t1", AccessToken: "x"}, true},
		{"shop with path", Connection{TenantID: "t1", ShopDomain: "demo.myshopify.com/admin", AccessToken: "x"}, true},
		{"missing token", Connection{TenantID: "t1", ShopDomain: "demo.myshopify.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conn.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaultsMinDigits(t *testing.T) {
	conn := Connection{TenantID: "t1", ShopDomain: "demo.myshopify.com", AccessToken: "x"}
	if err := conn.Validate(); err != nil {
		t.Fatal(err)
	}
	if conn.OrderNumberMinDigits != DefaultOrderNumberMinDigits {
		t.Errorf("OrderNumberMinDigits = %d, want default", conn.OrderNumberMinDigits)
	}
}
