package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"pos-shopify-sync/internal/application"
	"pos-shopify-sync/internal/config"
	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/infrastructure/encryption"
	"pos-shopify-sync/internal/infrastructure/images"
	"pos-shopify-sync/internal/infrastructure/lock"
	"pos-shopify-sync/internal/infrastructure/metrics"
	"pos-shopify-sync/internal/infrastructure/pubsub"
	"pos-shopify-sync/internal/infrastructure/repository"
	"pos-shopify-sync/internal/infrastructure/session"
	shopifyinfra "pos-shopify-sync/internal/infrastructure/shopify"
	"pos-shopify-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create indexes")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Repositories
	connectionRepo := repository.NewMongoConnectionRepository(db)
	catalogRepo := repository.NewMongoCatalogRepository(db)
	orderRepo := repository.NewMongoOrderRepository(db)
	customerRepo := repository.NewMongoCustomerRepository(db)
	lookupRepo := repository.NewMongoLookupRepository(db)

	// Shopify infrastructure. One rate limiter is shared by all gateways so
	// every job for a shop draws from the same budget.
	rateLimiter := shopifyinfra.NewRateLimiter(logger)
	gatewayFactory := ports.GatewayFactoryFunc(func(shopDomain, accessToken string) ports.ShopifyGateway {
		return shopifyinfra.NewGateway(shopDomain, accessToken, rateLimiter, logger)
	})
	oauthClient := shopifyinfra.NewOAuthClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, logger)

	sessionStore := session.NewRedisStore(redisClient)
	locker := lock.NewRedisLocker(redisClient, logger)
	imageFetcher := images.NewHTTPFetcher(cfg.ImageDir, logger)
	m := metrics.New(prometheus.DefaultRegisterer)
	eventBus := pubsub.NewEventBus(logger)

	// Application services
	mapper := application.NewMapper(lookupRepo, catalogRepo, imageFetcher, logger)
	productSync := application.NewProductSync(connectionRepo, encryptionService, gatewayFactory, catalogRepo, mapper, m, logger)
	orderSync := application.NewOrderSync(connectionRepo, encryptionService, gatewayFactory, orderRepo, customerRepo, catalogRepo, productSync, m, logger)
	reconciler := application.NewReconciler(connectionRepo, orderRepo, application.ReconcilerOptions{}, logger)
	dispatcher := application.NewWebhookDispatcher(connectionRepo, encryptionService, gatewayFactory, orderSync, productSync, eventBus, m, logger)
	connectionService := application.NewConnectionService(
		connectionRepo,
		encryptionService,
		gatewayFactory,
		oauthClient,
		sessionStore,
		cfg.ShopifyScopes,
		cfg.AppURL+"/auth/callback",
		cfg.AppURL,
		cfg.ShopifyAPISecret,
		logger,
	)

	if cfg.SchedulerEnabled {
		scheduler := application.NewScheduler(connectionRepo, locker, productSync, orderSync, cfg.SyncInterval, logger)
		go scheduler.Run(ctx)
	}

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(tenantIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           "ok",
			"eventSubscribers": eventBus.SubscriberCount(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook/{tenantID}", webhookHandler(dispatcher, logger))
	r.Get("/events", eventsHandler(eventBus, logger))

	r.Get("/auth/shopify", oauthInitHandler(connectionService, logger))
	r.Get("/auth/callback", oauthCallbackHandler(connectionService, logger))

	r.Post("/sync/products", productSyncHandler(productSync, logger))
	r.Post("/sync/orders", orderSyncHandler(orderSync, logger))
	r.Post("/sync/products/{productID}", productExportHandler(productSync, logger))
	r.Post("/sync/cleanup-duplicates", reconcileHandler(reconciler, logger))
	r.Get("/sync/status", statusHandler(connectionService, logger))

	r.Post("/connection/test", testConnectionHandler(connectionService, logger))
	r.Put("/connection/settings", settingsHandler(connectionService, logger))
	r.Delete("/connection", disconnectHandler(connectionService, logger))

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// tenantIDMiddleware puts the X-Tenant-ID header on the request context.
// Webhook, OAuth callback and operational routes carry the tenant some other
// way and are skipped.
func tenantIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" || path == "/auth/callback" ||
			(len(path) > 9 && path[:9] == "/webhook/") {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			tenantID = r.URL.Query().Get("tenant_id")
		}
		if tenantID == "" {
			http.Error(w, "X-Tenant-ID header is required", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.WithTenantID(r.Context(), tenantID)))
	})
}

// webhookHandler maps dispatcher boundary errors onto the HTTP statuses
// Shopify expects: 404 unknown tenant, 400 missing secret, 401 bad signature.
func webhookHandler(dispatcher *application.WebhookDispatcher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		topic := r.Header.Get("X-Shopify-Topic")
		if topic == "" {
			http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		signature := r.Header.Get("X-Shopify-Hmac-SHA256")
		err = dispatcher.Handle(r.Context(), tenantID, topic, payload, signature)
		switch {
		case errors.Is(err, application.ErrUnknownTenant):
			http.Error(w, "Unknown tenant", http.StatusNotFound)
		case errors.Is(err, application.ErrNoWebhookSecret):
			http.Error(w, "Webhook secret not configured", http.StatusBadRequest)
		case errors.Is(err, application.ErrInvalidSignature):
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
		case err != nil:
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("webhook handling failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"received": "true"})
		}
	}
}

// eventsHandler streams the tenant's verified webhook events as server-sent
// events, optionally narrowed by topic query parameters.
func eventsHandler(bus *pubsub.EventBus, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}
		tenantID := domain.GetTenantIDFromContext(r.Context())
		sub := bus.Subscribe(r.Context(), pubsub.Filter{
			TenantID: tenantID,
			Topics:   r.URL.Query()["topic"],
		})
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-sub.Events():
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.Error().Err(err).Str("tenantId", tenantID).Msg("failed to encode event")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data)
				flusher.Flush()
			}
		}
	}
}

func oauthInitHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			http.Error(w, "shop parameter is required", http.StatusBadRequest)
			return
		}
		tenantID := domain.GetTenantIDFromContext(r.Context())
		returnURL := r.URL.Query().Get("return_url")

		authURL, err := connections.StartOAuth(r.Context(), tenantID, shop, returnURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to start OAuth flow")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func oauthCallbackHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, returnURL, err := connections.CompleteOAuth(r.Context(), r.URL)
		if err != nil {
			logger.Error().Err(err).Msg("OAuth callback failed")
			http.Error(w, "Failed to complete installation", http.StatusUnauthorized)
			return
		}
		if returnURL == "" {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "connected",
				"shop":   conn.ShopDomain,
			})
			return
		}
		redirect := returnURL + "?shopify_oauth=success&shop=" + url.QueryEscape(conn.ShopDomain)
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

func productSyncHandler(products *application.ProductSync, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		report, err := products.SyncAll(r.Context(), tenantID)
		writeSyncResponse(w, report, err, logger)
	}
}

func orderSyncHandler(orders *application.OrderSync, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		report, err := orders.SyncAll(r.Context(), tenantID)
		writeSyncResponse(w, report, err, logger)
	}
}

func productExportHandler(products *application.ProductSync, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		productID := chi.URLParam(r, "productID")
		if err := products.ExportProduct(r.Context(), tenantID, productID); err != nil {
			if errors.Is(err, application.ErrNotConnected) {
				http.Error(w, "Shopify is not connected", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("productId", productID).Msg("product export failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "exported"})
	}
}

func reconcileHandler(reconciler *application.Reconciler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		report, err := reconciler.Reconcile(r.Context(), tenantID)
		if err != nil {
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("duplicate reconciliation failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(report)
	}
}

func statusHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		status, err := connections.Status(r.Context(), tenantID)
		if err != nil {
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("failed to load connection status")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(status)
	}
}

func testConnectionHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		shop, err := connections.TestConnection(r.Context(), tenantID)
		if err != nil {
			if errors.Is(err, application.ErrNotConnected) {
				http.Error(w, "Shopify is not connected", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("connection test failed")
			http.Error(w, "Connection test failed", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(shop)
	}
}

func settingsHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		var settings application.ConnectionSettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		conn, err := connections.UpdateSettings(r.Context(), tenantID, settings)
		if err != nil {
			if errors.Is(err, application.ErrNotConnected) {
				http.Error(w, "Shopify is not connected", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("settings update failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(conn)
	}
}

func disconnectHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.GetTenantIDFromContext(r.Context())
		if err := connections.Disconnect(r.Context(), tenantID); err != nil {
			if errors.Is(err, application.ErrNotConnected) {
				http.Error(w, "Shopify is not connected", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("tenantId", tenantID).Msg("disconnect failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "disconnected"})
	}
}

func writeSyncResponse(w http.ResponseWriter, report *domain.SyncReport, err error, logger zerolog.Logger) {
	if err != nil {
		if errors.Is(err, application.ErrNotConnected) {
			http.Error(w, "Shopify is not connected", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Msg("sync failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(report)
}
