package application

import (
	"context"
	"errors"
	"time"

	"pos-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Scheduler runs periodic product and order syncs for every sync-enabled
// connection. A per-tenant lock keeps overlapping ticks and other replicas
// from running two jobs for the same tenant at once.
type Scheduler struct {
	connections ports.ConnectionRepository
	locker      ports.Locker
	products    *ProductSync
	orders      *OrderSync
	interval    time.Duration
	logger      zerolog.Logger
}

// NewScheduler creates a new sync scheduler
func NewScheduler(
	connections ports.ConnectionRepository,
	locker ports.Locker,
	products *ProductSync,
	orders *OrderSync,
	interval time.Duration,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		connections: connections,
		locker:      locker,
		products:    products,
		orders:      orders,
		interval:    interval,
		logger:      logger,
	}
}

// Run ticks until the context is cancelled. Each tick syncs all enabled
// tenants sequentially; tenants whose lock is held elsewhere are skipped.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sync scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	conns, err := s.connections.ListSyncEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list sync-enabled connections")
		return
	}
	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		s.syncTenant(ctx, conn.TenantID)
	}
}

// syncTenant runs one product and one order sync under the tenant's lock.
// The lock TTL covers the longest expected job; redislock expires it if the
// process dies mid-run.
func (s *Scheduler) syncTenant(ctx context.Context, tenantID string) {
	release, err := s.locker.TryLock(ctx, "shopify:sync:"+tenantID, 30*time.Minute)
	if errors.Is(err, ports.ErrLockHeld) {
		s.logger.Debug().Str("tenantId", tenantID).Msg("sync already running for tenant, skipping")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("tenantId", tenantID).Msg("failed to acquire sync lock")
		return
	}
	defer release()

	if _, err := s.products.SyncAll(ctx, tenantID); err != nil {
		s.logger.Error().Err(err).Str("tenantId", tenantID).Msg("scheduled product sync failed")
	}
	if _, err := s.orders.SyncAll(ctx, tenantID); err != nil {
		s.logger.Error().Err(err).Str("tenantId", tenantID).Msg("scheduled order sync failed")
	}
}
