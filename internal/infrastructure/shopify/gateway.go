package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	apiVersion = "2024-01"

	callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

	// defaultRetryAfter is used when a 429 response omits Retry-After.
	defaultRetryAfter = 2 * time.Second

	// maxServerErrorAttempts bounds retries on 5xx responses.
	maxServerErrorAttempts = 3

	// MaxPageSize is the largest page Shopify's REST API serves.
	MaxPageSize = 250
)

// ListOptions control cursor pagination on list endpoints.
type ListOptions struct {
	SinceID int64
	Limit   int
	Status  string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.SinceID > 0 {
		v.Set("since_id", strconv.FormatInt(o.SinceID, 10))
	}
	limit := o.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	v.Set("limit", strconv.Itoa(limit))
	if o.Status != "" {
		v.Set("status", o.Status)
	}
	return v
}

// Gateway is a Shopify Admin REST client bound to one shop and access token.
// Every request flows through the shared rate limiter and the retry pipeline:
// 429s are retried after the server's Retry-After (bounded only by the
// context), 5xx responses are retried up to three times with linear backoff,
// and any other non-2xx status returns an *APIError immediately.
type Gateway struct {
	shopDomain  string
	accessToken string
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewGateway creates a gateway for one shop. The rate limiter is shared
// across gateways so concurrent jobs for the same shop respect one budget.
func NewGateway(shopDomain, accessToken string, rateLimiter *RateLimiter, logger zerolog.Logger) *Gateway {
	return &Gateway{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopDomain, apiVersion),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// NewGatewayWithBaseURL is NewGateway with an explicit base URL, for tests.
func NewGatewayWithBaseURL(shopDomain, accessToken, baseURL string, rateLimiter *RateLimiter, logger zerolog.Logger) *Gateway {
	g := NewGateway(shopDomain, accessToken, rateLimiter, logger)
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// ShopDomain returns the shop this gateway is bound to.
func (g *Gateway) ShopDomain() string {
	return g.shopDomain
}

func (g *Gateway) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	reqURL := g.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	serverErrAttempts := 0
	for {
		if err := g.rateLimiter.Acquire(ctx, g.shopDomain); err != nil {
			return err
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", g.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call shopify: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read shopify response: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header.Get("Retry-After"))
			g.logger.Warn().
				Str("shop", g.shopDomain).
				Str("path", path).
				Dur("retry_after", wait).
				Msg("rate limited by shopify, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue

		case resp.StatusCode >= 500:
			serverErrAttempts++
			if serverErrAttempts >= maxServerErrorAttempts {
				return &APIError{
					StatusCode: resp.StatusCode,
					Status:     resp.Status,
					Body:       string(respBody),
					URL:        reqURL,
				}
			}
			wait := time.Duration(serverErrAttempts) * time.Second
			g.logger.Warn().
				Str("shop", g.shopDomain).
				Str("path", path).
				Int("status", resp.StatusCode).
				Int("attempt", serverErrAttempts).
				Dur("backoff", wait).
				Msg("shopify server error, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue

		case resp.StatusCode >= 400:
			return &APIError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(respBody),
				URL:        reqURL,
			}
		}

		g.rateLimiter.Observe(g.shopDomain, resp.Header.Get(callLimitHeader))

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode shopify response: %w", err)
			}
		}
		return nil
	}
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

// ListProducts fetches one page of products ordered by id.
func (g *Gateway) ListProducts(ctx context.Context, opts ListOptions) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := g.do(ctx, http.MethodGet, "/products.json", opts.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out.Products, nil
}

// GetProduct fetches a single product by id.
func (g *Gateway) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	path := fmt.Sprintf("/products/%d.json", productID)
	if err := g.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", productID, err)
	}
	return &out.Product, nil
}

// CreateProduct creates a product and returns the remote record with ids.
func (g *Gateway) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	body := map[string]*Product{"product": product}
	if err := g.do(ctx, http.MethodPost, "/products.json", nil, body, &out); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &out.Product, nil
}

// UpdateProduct updates an existing product by its remote id.
func (g *Gateway) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	path := fmt.Sprintf("/products/%d.json", product.ID)
	body := map[string]*Product{"product": product}
	if err := g.do(ctx, http.MethodPut, path, nil, body, &out); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", product.ID, err)
	}
	return &out.Product, nil
}

// ListOrders fetches one page of orders ordered by id. Callers pass
// Status "any" to include closed and cancelled orders.
func (g *Gateway) ListOrders(ctx context.Context, opts ListOptions) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := g.do(ctx, http.MethodGet, "/orders.json", opts.values(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return out.Orders, nil
}

// GetOrder fetches a single order by id.
func (g *Gateway) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var out struct {
		Order Order `json:"order"`
	}
	path := fmt.Sprintf("/orders/%d.json", orderID)
	if err := g.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return &out.Order, nil
}

// SetInventoryLevel sets the available quantity of an inventory item at a
// location.
func (g *Gateway) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, available int) error {
	body := map[string]interface{}{
		"inventory_item_id": inventoryItemID,
		"location_id":       locationID,
		"available":         available,
	}
	if err := g.do(ctx, http.MethodPost, "/inventory_levels/set.json", nil, body, nil); err != nil {
		return fmt.Errorf("failed to set inventory level: %w", err)
	}
	return nil
}

// ListLocations fetches the shop's fulfillment locations.
func (g *Gateway) ListLocations(ctx context.Context) ([]Location, error) {
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := g.do(ctx, http.MethodGet, "/locations.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return out.Locations, nil
}

// GetShop fetches the shop record; used as a connection test.
func (g *Gateway) GetShop(ctx context.Context) (*Shop, error) {
	var out struct {
		Shop Shop `json:"shop"`
	}
	if err := g.do(ctx, http.MethodGet, "/shop.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &out.Shop, nil
}

// CreateWebhook registers a webhook subscription.
func (g *Gateway) CreateWebhook(ctx context.Context, topic, address string) (*Webhook, error) {
	var out struct {
		Webhook Webhook `json:"webhook"`
	}
	body := map[string]Webhook{"webhook": {Topic: topic, Address: address, Format: "json"}}
	if err := g.do(ctx, http.MethodPost, "/webhooks.json", nil, body, &out); err != nil {
		return nil, fmt.Errorf("failed to create webhook for %s: %w", topic, err)
	}
	return &out.Webhook, nil
}

// ListWebhooks fetches the shop's webhook subscriptions.
func (g *Gateway) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := g.do(ctx, http.MethodGet, "/webhooks.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return out.Webhooks, nil
}

// DeleteWebhook removes a webhook subscription by id.
func (g *Gateway) DeleteWebhook(ctx context.Context, webhookID int64) error {
	path := fmt.Sprintf("/webhooks/%d.json", webhookID)
	if err := g.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete webhook %d: %w", webhookID, err)
	}
	return nil
}
