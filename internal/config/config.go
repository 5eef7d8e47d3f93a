package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string

	ShopifyAPIKey    string
	ShopifyAPISecret string
	ShopifyScopes    []string
	AppURL           string

	EncryptionKey []byte
	ImageDir      string

	SchedulerEnabled bool
	SyncInterval     time.Duration
}

// Load reads configuration from the environment, with a .env file as
// fallback, and validates required fields once.
func Load() (*Config, error) {
	// Missing .env is fine in production; env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		MongoURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "pos_shopify_sync"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		ShopifyAPIKey:    os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret: os.Getenv("SHOPIFY_API_SECRET"),
		AppURL:           getEnv("APP_URL", "http://localhost:8080"),
		ImageDir:         getEnv("IMAGE_DIR", "./data/images"),
	}

	scopes := getEnv("SHOPIFY_SCOPES", "read_products,write_products,read_orders,write_orders,read_inventory,write_inventory")
	for _, s := range strings.Split(scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.ShopifyScopes = append(cfg.ShopifyScopes, s)
		}
	}

	if cfg.ShopifyAPIKey == "" {
		return nil, fmt.Errorf("SHOPIFY_API_KEY is required")
	}
	if cfg.ShopifyAPISecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}

	keyHex := os.Getenv("ENCRYPTION_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.EncryptionKey = key

	enabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_ENABLED must be a bool: %w", err)
	}
	cfg.SchedulerEnabled = enabled

	interval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_INTERVAL must be a duration: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("SYNC_INTERVAL must be at least 1m")
	}
	cfg.SyncInterval = interval

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
