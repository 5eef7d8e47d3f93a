package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across the service.
type Metrics struct {
	SyncRuns        *prometheus.CounterVec
	SyncEntities    *prometheus.CounterVec
	WebhooksTotal   *prometheus.CounterVec
	WebhookFailures *prometheus.CounterVec
	APIRetries      *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
}

// New registers the service collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_sync_runs_total",
			Help: "Sync runs by kind and result.",
		}, []string{"kind", "result"}),
		SyncEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_sync_entities_total",
			Help: "Entities processed by sync runs, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		WebhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_webhooks_received_total",
			Help: "Webhooks received by topic.",
		}, []string{"topic"}),
		WebhookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_webhook_failures_total",
			Help: "Webhook processing failures by topic.",
		}, []string{"topic"}),
		APIRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_api_retries_total",
			Help: "Shopify API retries by reason.",
		}, []string{"reason"}),
		SyncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopify_sync_duration_seconds",
			Help:    "Duration of sync runs by kind.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"kind"}),
	}
}
