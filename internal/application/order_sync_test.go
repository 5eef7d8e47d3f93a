package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/shopify"

	"github.com/shopspring/decimal"
)

func remoteOrder(id, orderNumber int64) shopify.Order {
	return shopify.Order{
		ID:              id,
		OrderNumber:     orderNumber,
		Email:           "buyer@example.com",
		FinancialStatus: "paid",
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		SubtotalPrice:   "20.00",
		TotalDiscounts:  "0.00",
		TotalPrice:      "22.50",
		Customer: &shopify.RemoteCustomer{
			Email:     "buyer@example.com",
			FirstName: "Pat",
			LastName:  "Doe",
		},
		ShippingLines: []shopify.ShippingLine{{Title: "Standard", Price: "2.50"}},
		LineItems: []shopify.LineItem{
			{ID: id * 100, ProductID: 1, VariantID: 11, Title: "One", SKU: "SKU-ONE", Quantity: 2, Price: "10.00"},
		},
	}
}

// seedProduct puts a synced product with external ids 1/11 into the catalog.
func seedProduct(t *testing.T, env *testEnv) *domain.Product {
	t.Helper()
	p := &domain.Product{
		TenantID:          "tenant-1",
		Name:              "One",
		SKU:               "SKU-ONE",
		ExternalProductID: "1",
		Variants: []domain.Variant{
			{ID: "v1", SubSKU: "SKU-ONE", ExternalVariantID: "11", SellPrice: decimal.RequireFromString("10.00")},
		},
	}
	if err := env.catalog.Save(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestUpsertRemoteOrderCreates(t *testing.T) {
	env := newTestEnv(testConnection())
	product := seedProduct(t, env)

	remote := remoteOrder(5001, 1001)
	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err != nil {
		t.Fatalf("UpsertRemoteOrder: %v", err)
	}
	if outcome != outcomeCreated {
		t.Fatalf("outcome = %q, want created", outcome)
	}
	if len(env.orders.orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(env.orders.orders))
	}

	order := env.orders.orders[0]
	if order.ExternalOrderID != "5001" || order.InvoiceNo != "1001" {
		t.Errorf("keys = %q/%q, want 5001/1001", order.ExternalOrderID, order.InvoiceNo)
	}
	if order.Status != domain.OrderStatusFinal {
		t.Errorf("Status = %q, paid order must be final", order.Status)
	}
	if order.Type != domain.OrderTypeSell {
		t.Errorf("Type = %q, want sell", order.Type)
	}
	if !order.ShippingCharges.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("ShippingCharges = %s, want 2.50", order.ShippingCharges)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(order.Lines))
	}
	line := order.Lines[0]
	if line.ProductID != product.ID || line.VariantID != "v1" {
		t.Errorf("line refs = %q/%q", line.ProductID, line.VariantID)
	}
	if !line.LineTotal.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("LineTotal = %s, want 20.00", line.LineTotal)
	}
	if len(env.customers.customers) != 1 {
		t.Fatalf("got %d customers, want 1", len(env.customers.customers))
	}
	if order.CustomerID != env.customers.customers[0].ID {
		t.Errorf("order not linked to created customer")
	}
}

func TestUpsertRemoteOrderIsIdempotent(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	remote := remoteOrder(5002, 1002)
	for i := 0; i < 2; i++ {
		want := outcomeCreated
		if i > 0 {
			want = outcomeSkipped
		}
		outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if outcome != want {
			t.Fatalf("pass %d: outcome = %q, want %q", i, outcome, want)
		}
	}
	if len(env.orders.orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(env.orders.orders))
	}
}

func TestUpsertRemoteOrderMatchesLegacyByOrderNumber(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	legacy := &domain.Order{
		TenantID:  "tenant-1",
		Type:      domain.OrderTypeSell,
		InvoiceNo: "1003",
		Status:    domain.OrderStatusFinal,
	}
	if err := env.orders.Save(context.Background(), legacy); err != nil {
		t.Fatal(err)
	}

	remote := remoteOrder(5003, 1003)
	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err != nil {
		t.Fatalf("UpsertRemoteOrder: %v", err)
	}
	if outcome != outcomeSkipped {
		t.Errorf("outcome = %q, want skipped", outcome)
	}
	if legacy.ExternalOrderID != "5003" {
		t.Errorf("ExternalOrderID = %q, legacy order must gain the link", legacy.ExternalOrderID)
	}
	if len(env.orders.orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(env.orders.orders))
	}
}

func TestUpsertRemoteOrderFetchesMissingProduct(t *testing.T) {
	env := newTestEnv(testConnection())
	env.gateway.getProductFn = func(productID int64) (*shopify.Product, error) {
		p := remoteProduct(productID, "Fetched On Demand", "SKU-ONE")
		p.Variants[0].ID = 11
		return &p, nil
	}

	remote := remoteOrder(5004, 1004)
	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err != nil {
		t.Fatalf("UpsertRemoteOrder: %v", err)
	}
	if outcome != outcomeCreated {
		t.Fatalf("outcome = %q, want created", outcome)
	}
	if len(env.catalog.products) != 1 {
		t.Fatalf("got %d products, want the on-demand synced one", len(env.catalog.products))
	}
	if env.catalog.products[0].ExternalProductID != "1" {
		t.Errorf("ExternalProductID = %q, want 1", env.catalog.products[0].ExternalProductID)
	}
}

func TestUpsertRemoteOrderCreatesPlaceholderForDeletedProduct(t *testing.T) {
	env := newTestEnv(testConnection())

	remote := remoteOrder(5005, 1005)
	remote.LineItems = []shopify.LineItem{
		{ID: 777, ProductID: 0, VariantID: 0, Title: "Gone Item", SKU: "", Quantity: 1, Price: "4.00"},
	}

	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err != nil {
		t.Fatalf("UpsertRemoteOrder: %v", err)
	}
	if outcome != outcomeCreated {
		t.Fatalf("outcome = %q, want created", outcome)
	}
	if len(env.catalog.products) != 1 {
		t.Fatalf("got %d products, want 1 placeholder", len(env.catalog.products))
	}

	placeholder := env.catalog.products[0]
	if placeholder.Name != "Gone Item (Deleted from Shopify)" {
		t.Errorf("placeholder name = %q", placeholder.Name)
	}
	if placeholder.SKU != "DELETED-777" {
		t.Errorf("placeholder sku = %q, want DELETED-777", placeholder.SKU)
	}
	if !placeholder.NotForSelling {
		t.Error("placeholder must be flagged not-for-selling")
	}

	// A second order for the same deleted item reuses the placeholder.
	remote2 := remoteOrder(5006, 1006)
	remote2.LineItems = []shopify.LineItem{
		{ID: 777, ProductID: 0, Title: "Gone Item", Quantity: 2, Price: "4.00"},
	}
	if _, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote2); err != nil {
		t.Fatalf("second order: %v", err)
	}
	if len(env.catalog.products) != 1 {
		t.Errorf("got %d products, placeholder must be reused", len(env.catalog.products))
	}
}

func TestUpsertRemoteOrderFailsWithNoResolvableLines(t *testing.T) {
	env := newTestEnv(testConnection())
	// getProductFn unset: the on-demand fetch 404s and the line is skipped.

	remote := remoteOrder(5007, 1007)
	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err == nil {
		t.Fatal("expected error for order with no valid lines")
	}
	if outcome != outcomeFailed {
		t.Errorf("outcome = %q, want failed", outcome)
	}
	if len(env.orders.orders) != 0 {
		t.Errorf("got %d orders, want none persisted", len(env.orders.orders))
	}
	if len(env.customers.customers) != 0 {
		t.Errorf("got %d customers, a rejected order must not leave one behind", len(env.customers.customers))
	}
}

func TestUpsertRemoteOrderConcurrentInsertSkips(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	remote := remoteOrder(5008, 1008)
	if _, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// The second processor passed both existence checks before the first
	// insert landed; only the unique index stands between it and a duplicate.
	env.orders.getByExternalIDFn = func(string, string) (*domain.Order, error) { return nil, nil }
	env.orders.getSellByInvoiceFn = func(string, string) (*domain.Order, error) { return nil, nil }

	outcome, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote)
	if err != nil {
		t.Fatalf("UpsertRemoteOrder: %v", err)
	}
	if outcome != outcomeSkipped {
		t.Errorf("outcome = %q, a concurrent duplicate must skip, not fail", outcome)
	}
	if len(env.orders.orders) != 1 {
		t.Errorf("got %d orders, want 1", len(env.orders.orders))
	}
}

func TestUpsertRemoteOrderStatusMapping(t *testing.T) {
	cancelled := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name            string
		financialStatus string
		cancelledAt     *time.Time
		want            domain.OrderStatus
	}{
		{"paid is final", "paid", nil, domain.OrderStatusFinal},
		{"refunded is final", "refunded", nil, domain.OrderStatusFinal},
		{"pending is draft", "pending", nil, domain.OrderStatusDraft},
		{"unknown is draft", "weird", nil, domain.OrderStatusDraft},
		{"cancelled wins", "paid", &cancelled, domain.OrderStatusCancelled},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(testConnection())
			seedProduct(t, env)

			remote := remoteOrder(int64(6000+i), int64(2000+i))
			remote.FinancialStatus = tt.financialStatus
			remote.CancelledAt = tt.cancelledAt

			if _, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote); err != nil {
				t.Fatalf("UpsertRemoteOrder: %v", err)
			}
			if got := env.orders.orders[0].Status; got != tt.want {
				t.Errorf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOrderSyncAllStopsGracefullyOnPageError(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	calls := 0
	env.gateway.listOrdersFn = func(opts shopify.ListOptions) ([]shopify.Order, error) {
		calls++
		if opts.SinceID == 0 {
			page := make([]shopify.Order, shopify.MaxPageSize)
			for i := range page {
				page[i] = remoteOrder(int64(i+1), int64(3000+i))
			}
			return page, nil
		}
		return nil, &shopify.APIError{StatusCode: 502, Status: "502 Bad Gateway"}
	}

	report, err := env.orderSync.SyncAll(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if report.Created != shopify.MaxPageSize {
		t.Errorf("Created = %d, the first page must be kept", report.Created)
	}
	if calls != 2 {
		t.Errorf("ListOrders called %d times, want 2", calls)
	}
}

func TestOrderSyncAllRetriesRateLimitedPage(t *testing.T) {
	env := newTestEnv(testConnection())
	env.orderSync.retryDelay = time.Millisecond
	seedProduct(t, env)

	calls := 0
	env.gateway.listOrdersFn = func(opts shopify.ListOptions) ([]shopify.Order, error) {
		calls++
		if calls == 1 {
			return nil, &shopify.APIError{StatusCode: 429, Status: "429 Too Many Requests"}
		}
		if opts.SinceID == 0 {
			return []shopify.Order{remoteOrder(7001, 4001)}, nil
		}
		return nil, nil
	}

	report, err := env.orderSync.SyncAll(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if report.Created != 1 {
		t.Errorf("Created = %d, want 1 after retry", report.Created)
	}
	if calls < 2 {
		t.Errorf("ListOrders called %d times, want a retry", calls)
	}
}

func TestMarkPaidAndCancelled(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	remote := remoteOrder(8001, 5001)
	remote.FinancialStatus = "pending"
	if _, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote); err != nil {
		t.Fatal(err)
	}
	order := env.orders.orders[0]
	if order.Status != domain.OrderStatusDraft {
		t.Fatalf("Status = %q, want draft", order.Status)
	}

	if err := env.orderSync.MarkPaid(context.Background(), "tenant-1", 8001); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if order.Status != domain.OrderStatusFinal {
		t.Errorf("Status = %q, want final", order.Status)
	}

	if err := env.orderSync.MarkCancelled(context.Background(), "tenant-1", 8001); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("Status = %q, want cancelled", order.Status)
	}

	if err := env.orderSync.MarkPaid(context.Background(), "tenant-1", 999999); err == nil {
		t.Error("expected error for unlinked external order")
	}
}

func TestResolveCustomerBackfillsExisting(t *testing.T) {
	env := newTestEnv(testConnection())
	seedProduct(t, env)

	existing := &domain.Customer{
		TenantID:  "tenant-1",
		Email:     "buyer@example.com",
		FirstName: "Existing",
	}
	if err := env.customers.Save(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	remote := remoteOrder(9001, 6001)
	remote.Customer.Phone = "+1555000"
	if _, err := env.orderSync.UpsertRemoteOrder(context.Background(), env.conn, env.gateway, &remote); err != nil {
		t.Fatal(err)
	}

	if len(env.customers.customers) != 1 {
		t.Fatalf("got %d customers, want the existing one reused", len(env.customers.customers))
	}
	if existing.FirstName != "Existing" {
		t.Errorf("FirstName = %q, present data must not be overwritten", existing.FirstName)
	}
	if existing.LastName != "Doe" {
		t.Errorf("LastName = %q, missing field must be backfilled", existing.LastName)
	}
	if existing.Mobile != "+1555000" {
		t.Errorf("Mobile = %q, missing field must be backfilled", existing.Mobile)
	}
}

func TestIsRateLimitError(t *testing.T) {
	if !isRateLimitError(&shopify.APIError{StatusCode: 429}) {
		t.Error("429 APIError must classify as rate limit")
	}
	if isRateLimitError(&shopify.APIError{StatusCode: 500}) {
		t.Error("500 APIError must not classify as rate limit")
	}
	if !isRateLimitError(fmt.Errorf("shopify: rate limit exceeded")) {
		t.Error("rate limit message must classify as rate limit")
	}
	if isRateLimitError(fmt.Errorf("connection refused")) {
		t.Error("unrelated error must not classify as rate limit")
	}
}
