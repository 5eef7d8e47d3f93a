package application

import (
	"context"
	"fmt"
	"sort"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/metrics"
	"pos-shopify-sync/internal/infrastructure/pubsub"
	"pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// fakeConnections is an in-memory ConnectionRepository.
type fakeConnections struct {
	conns map[string]*domain.Connection
}

func newFakeConnections(conns ...*domain.Connection) *fakeConnections {
	f := &fakeConnections{conns: make(map[string]*domain.Connection)}
	for _, c := range conns {
		f.conns[c.TenantID] = c
	}
	return f
}

func (f *fakeConnections) GetByTenantID(_ context.Context, tenantID string) (*domain.Connection, error) {
	return f.conns[tenantID], nil
}

func (f *fakeConnections) Save(_ context.Context, conn *domain.Connection) error {
	f.conns[conn.TenantID] = conn
	return nil
}

func (f *fakeConnections) Delete(_ context.Context, tenantID string) error {
	delete(f.conns, tenantID)
	return nil
}

func (f *fakeConnections) ListSyncEnabled(_ context.Context) ([]*domain.Connection, error) {
	var out []*domain.Connection
	for _, c := range f.conns {
		if c.SyncEnabled {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeCatalog is an in-memory CatalogRepository.
type fakeCatalog struct {
	products []*domain.Product
	seq      int64
	saves    int
}

func (f *fakeCatalog) GetByID(_ context.Context, tenantID, productID string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.TenantID == tenantID && p.ID == productID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetByExternalID(_ context.Context, tenantID, externalProductID string) (*domain.Product, error) {
	if externalProductID == "" {
		return nil, nil
	}
	for _, p := range f.products {
		if p.TenantID == tenantID && p.ExternalProductID == externalProductID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetBySKU(_ context.Context, tenantID, sku string) (*domain.Product, error) {
	if sku == "" {
		return nil, nil
	}
	for _, p := range f.products {
		if p.TenantID == tenantID && p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetByName(_ context.Context, tenantID, name string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.TenantID == tenantID && p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetByExternalVariantID(_ context.Context, tenantID, externalVariantID string) (*domain.Product, error) {
	if externalVariantID == "" {
		return nil, nil
	}
	for _, p := range f.products {
		if p.TenantID != tenantID {
			continue
		}
		if p.VariantByExternalID(externalVariantID) != nil {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Save(_ context.Context, product *domain.Product) error {
	f.saves++
	if product.ID == "" {
		product.ID = fmt.Sprintf("product-%d", len(f.products)+1)
		f.products = append(f.products, product)
		return nil
	}
	for i, p := range f.products {
		if p.ID == product.ID {
			f.products[i] = product
			return nil
		}
	}
	f.products = append(f.products, product)
	return nil
}

func (f *fakeCatalog) NextSKUSequence(_ context.Context, _ string) (int64, error) {
	f.seq++
	return f.seq, nil
}

// fakeOrders is an in-memory OrderRepository. Inserts enforce the same
// external order id uniqueness as the real partial index; the lookup
// function fields let tests stage lookup/insert race windows.
type fakeOrders struct {
	orders []*domain.Order

	getByExternalIDFn  func(tenantID, externalOrderID string) (*domain.Order, error)
	getSellByInvoiceFn func(tenantID, invoiceNo string) (*domain.Order, error)
}

func (f *fakeOrders) GetByExternalID(_ context.Context, tenantID, externalOrderID string) (*domain.Order, error) {
	if f.getByExternalIDFn != nil {
		return f.getByExternalIDFn(tenantID, externalOrderID)
	}
	if externalOrderID == "" {
		return nil, nil
	}
	for _, o := range f.orders {
		if o.TenantID == tenantID && o.ExternalOrderID == externalOrderID {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeOrders) GetSellByInvoiceNo(_ context.Context, tenantID, invoiceNo string) (*domain.Order, error) {
	if f.getSellByInvoiceFn != nil {
		return f.getSellByInvoiceFn(tenantID, invoiceNo)
	}
	if invoiceNo == "" {
		return nil, nil
	}
	for _, o := range f.orders {
		if o.TenantID == tenantID && o.Type == domain.OrderTypeSell && o.InvoiceNo == invoiceNo {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeOrders) Save(_ context.Context, order *domain.Order) error {
	if order.ID == "" {
		if order.ExternalOrderID != "" {
			for _, o := range f.orders {
				if o.TenantID == order.TenantID && o.ExternalOrderID == order.ExternalOrderID {
					return fmt.Errorf("order %s already exists: %w", order.ExternalOrderID, ports.ErrDuplicate)
				}
			}
		}
		order.ID = fmt.Sprintf("order-%d", len(f.orders)+1)
		f.orders = append(f.orders, order)
		return nil
	}
	for i, o := range f.orders {
		if o.ID == order.ID {
			f.orders[i] = order
			return nil
		}
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrders) Delete(_ context.Context, tenantID, orderID string) error {
	for i, o := range f.orders {
		if o.TenantID == tenantID && o.ID == orderID {
			f.orders = append(f.orders[:i], f.orders[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeOrders) ListWithExternalID(_ context.Context, tenantID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.TenantID == tenantID && o.ExternalOrderID != "" {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrders) ListSellOrders(_ context.Context, tenantID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.TenantID == tenantID && o.Type == domain.OrderTypeSell {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// fakeCustomers is an in-memory CustomerRepository.
type fakeCustomers struct {
	customers []*domain.Customer
}

func (f *fakeCustomers) GetByEmail(_ context.Context, tenantID, email string) (*domain.Customer, error) {
	for _, c := range f.customers {
		if c.TenantID == tenantID && c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomers) Save(_ context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = fmt.Sprintf("customer-%d", len(f.customers)+1)
		f.customers = append(f.customers, customer)
		return nil
	}
	for i, c := range f.customers {
		if c.ID == customer.ID {
			f.customers[i] = customer
			return nil
		}
	}
	f.customers = append(f.customers, customer)
	return nil
}

// fakeLookups is an in-memory LookupRepository.
type fakeLookups struct {
	brands     map[string]*domain.Brand
	categories map[string]*domain.Category
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{
		brands:     make(map[string]*domain.Brand),
		categories: make(map[string]*domain.Category),
	}
}

func (f *fakeLookups) GetOrCreateBrand(_ context.Context, tenantID, name string) (*domain.Brand, error) {
	if name == "" {
		return nil, nil
	}
	if b, ok := f.brands[name]; ok {
		return b, nil
	}
	b := &domain.Brand{ID: "brand-" + name, TenantID: tenantID, Name: name}
	f.brands[name] = b
	return b, nil
}

func (f *fakeLookups) GetOrCreateCategory(_ context.Context, tenantID, name string) (*domain.Category, error) {
	if name == "" {
		return nil, nil
	}
	if c, ok := f.categories[name]; ok {
		return c, nil
	}
	c := &domain.Category{ID: "category-" + name, TenantID: tenantID, Name: name}
	f.categories[name] = c
	return c, nil
}

func (f *fakeLookups) GetBrandByID(_ context.Context, _, brandID string) (*domain.Brand, error) {
	for _, b := range f.brands {
		if b.ID == brandID {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeLookups) GetCategoryByID(_ context.Context, _, categoryID string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == categoryID {
			return c, nil
		}
	}
	return nil, nil
}

// fakeImages records fetches and returns a stable stored path.
type fakeImages struct {
	fetched []string
	err     error
}

func (f *fakeImages) Fetch(_ context.Context, imageURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.fetched = append(f.fetched, imageURL)
	return "stored/" + imageURL, nil
}

// plainEncryption passes tokens through unchanged.
type plainEncryption struct{}

func (plainEncryption) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (plainEncryption) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// fakeGateway is a scriptable ShopifyGateway. Unset call fields return zero
// values so each test only scripts the endpoints it touches.
type fakeGateway struct {
	shop string

	listProductsFn  func(opts shopify.ListOptions) ([]shopify.Product, error)
	getProductFn    func(productID int64) (*shopify.Product, error)
	createProductFn func(product *shopify.Product) (*shopify.Product, error)
	updateProductFn func(product *shopify.Product) (*shopify.Product, error)
	listOrdersFn    func(opts shopify.ListOptions) ([]shopify.Order, error)
	setInventoryFn  func(inventoryItemID, locationID int64, available int) error

	locations []shopify.Location
	shopInfo  *shopify.Shop
	webhooks  []shopify.Webhook
	deleted   []int64
}

func (f *fakeGateway) ShopDomain() string { return f.shop }

func (f *fakeGateway) ListProducts(_ context.Context, opts shopify.ListOptions) ([]shopify.Product, error) {
	if f.listProductsFn == nil {
		return nil, nil
	}
	return f.listProductsFn(opts)
}

func (f *fakeGateway) GetProduct(_ context.Context, productID int64) (*shopify.Product, error) {
	if f.getProductFn == nil {
		return nil, &shopify.APIError{StatusCode: 404, Status: "404 Not Found"}
	}
	return f.getProductFn(productID)
}

func (f *fakeGateway) CreateProduct(_ context.Context, product *shopify.Product) (*shopify.Product, error) {
	if f.createProductFn == nil {
		return product, nil
	}
	return f.createProductFn(product)
}

func (f *fakeGateway) UpdateProduct(_ context.Context, product *shopify.Product) (*shopify.Product, error) {
	if f.updateProductFn == nil {
		return product, nil
	}
	return f.updateProductFn(product)
}

func (f *fakeGateway) ListOrders(_ context.Context, opts shopify.ListOptions) ([]shopify.Order, error) {
	if f.listOrdersFn == nil {
		return nil, nil
	}
	return f.listOrdersFn(opts)
}

func (f *fakeGateway) GetOrder(_ context.Context, orderID int64) (*shopify.Order, error) {
	return nil, &shopify.APIError{StatusCode: 404, Status: "404 Not Found"}
}

func (f *fakeGateway) SetInventoryLevel(_ context.Context, inventoryItemID, locationID int64, available int) error {
	if f.setInventoryFn == nil {
		return nil
	}
	return f.setInventoryFn(inventoryItemID, locationID, available)
}

func (f *fakeGateway) ListLocations(_ context.Context) ([]shopify.Location, error) {
	return f.locations, nil
}

func (f *fakeGateway) GetShop(_ context.Context) (*shopify.Shop, error) {
	if f.shopInfo == nil {
		return &shopify.Shop{Name: f.shop, Domain: f.shop}, nil
	}
	return f.shopInfo, nil
}

func (f *fakeGateway) CreateWebhook(_ context.Context, topic, address string) (*shopify.Webhook, error) {
	w := shopify.Webhook{ID: int64(len(f.webhooks) + 1), Topic: topic, Address: address, Format: "json"}
	f.webhooks = append(f.webhooks, w)
	return &w, nil
}

func (f *fakeGateway) ListWebhooks(_ context.Context) ([]shopify.Webhook, error) {
	return f.webhooks, nil
}

func (f *fakeGateway) DeleteWebhook(_ context.Context, webhookID int64) error {
	f.deleted = append(f.deleted, webhookID)
	for i, w := range f.webhooks {
		if w.ID == webhookID {
			f.webhooks = append(f.webhooks[:i], f.webhooks[i+1:]...)
			break
		}
	}
	return nil
}

// testEnv wires the engines against in-memory fakes for one tenant.
type testEnv struct {
	conn       *domain.Connection
	gateway    *fakeGateway
	catalog    *fakeCatalog
	orders     *fakeOrders
	customers  *fakeCustomers
	lookups    *fakeLookups
	images     *fakeImages
	bus        *pubsub.EventBus
	products   *ProductSync
	orderSync  *OrderSync
	dispatcher *WebhookDispatcher
}

func newTestEnv(conn *domain.Connection) *testEnv {
	logger := zerolog.Nop()
	gateway := &fakeGateway{shop: conn.ShopDomain}
	catalog := &fakeCatalog{}
	orders := &fakeOrders{}
	customers := &fakeCustomers{}
	lookups := newFakeLookups()
	imgs := &fakeImages{}
	m := metrics.New(prometheus.NewRegistry())
	bus := pubsub.NewEventBus(logger)

	connections := newFakeConnections(conn)
	factory := ports.GatewayFactoryFunc(func(string, string) ports.ShopifyGateway { return gateway })

	mapper := NewMapper(lookups, catalog, imgs, logger)
	products := NewProductSync(connections, plainEncryption{}, factory, catalog, mapper, m, logger)
	orderSync := NewOrderSync(connections, plainEncryption{}, factory, orders, customers, catalog, products, m, logger)
	dispatcher := NewWebhookDispatcher(connections, plainEncryption{}, factory, orderSync, products, bus, m, logger)

	return &testEnv{
		conn:       conn,
		gateway:    gateway,
		catalog:    catalog,
		orders:     orders,
		customers:  customers,
		lookups:    lookups,
		images:     imgs,
		bus:        bus,
		products:   products,
		orderSync:  orderSync,
		dispatcher: dispatcher,
	}
}

func testConnection() *domain.Connection {
	conn, err := domain.NewConnection("tenant-1", "demo.myshopify.com", "token", "whsecret", "loc-1")
	if err != nil {
		panic(err)
	}
	return conn
}
