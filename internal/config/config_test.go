package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SHOPIFY_API_KEY", "key")
	t.Setenv("SHOPIFY_API_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("ab", 32))
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SYNC_INTERVAL", "30m")
	t.Setenv("SHOPIFY_SCOPES", "")
	t.Setenv("PORT", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Errorf("EncryptionKey length = %d, want 32", len(cfg.EncryptionKey))
	}
	if !cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled = false, want default true")
	}
	if cfg.SyncInterval.Minutes() != 30 {
		t.Errorf("SyncInterval = %v, want 30m", cfg.SyncInterval)
	}
	if len(cfg.ShopifyScopes) == 0 {
		t.Error("default scopes missing")
	}
}

func TestLoadRequiresShopifyCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("SHOPIFY_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted missing SHOPIFY_API_KEY")
	}
}

func TestLoadValidatesEncryptionKey(t *testing.T) {
	tests := []struct {
		name, key string
	}{
		{"missing", ""},
		{"not hex", "zz"},
		{"wrong length", "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("ENCRYPTION_KEY", tt.key)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted ENCRYPTION_KEY=%q", tt.key)
			}
		})
	}
}

func TestLoadValidatesSyncInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_INTERVAL", "10s")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a sub-minute sync interval")
	}

	t.Setenv("SYNC_INTERVAL", "banana")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted an unparseable sync interval")
	}
}

func TestLoadParsesScopes(t *testing.T) {
	setRequired(t)
	t.Setenv("SHOPIFY_SCOPES", "read_products, write_orders ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.ShopifyScopes) != 2 || cfg.ShopifyScopes[0] != "read_products" || cfg.ShopifyScopes[1] != "write_orders" {
		t.Errorf("scopes = %v", cfg.ShopifyScopes)
	}
}
