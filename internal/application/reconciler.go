package application

import (
	"context"

	"pos-shopify-sync/internal/domain"
	"pos-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// OrderNumberPredicate decides whether an invoice number looks like a
// remote-assigned order number rather than an internally generated one.
type OrderNumberPredicate func(invoiceNo string) bool

// DefaultOrderNumberPredicate matches all-digit strings of at least minDigits
// characters. Internally generated invoice numbers carry a prefix and never
// match.
func DefaultOrderNumberPredicate(minDigits int) OrderNumberPredicate {
	if minDigits <= 0 {
		minDigits = domain.DefaultOrderNumberMinDigits
	}
	return func(invoiceNo string) bool {
		if len(invoiceNo) < minDigits {
			return false
		}
		for _, r := range invoiceNo {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
}

// ReconcilerOptions tune duplicate detection.
type ReconcilerOptions struct {
	// OrderNumberPredicate overrides the default numeric heuristic for
	// pass B. Nil uses DefaultOrderNumberPredicate with the tenant's
	// configured minimum digit count.
	OrderNumberPredicate OrderNumberPredicate
}

// Reconciler removes duplicate local orders left behind by earlier
// non-idempotent sync runs. It performs no remote calls and is safe to run
// repeatedly; a second run over the same data finds nothing.
type Reconciler struct {
	connections ports.ConnectionRepository
	orders      ports.OrderRepository
	opts        ReconcilerOptions
	logger      zerolog.Logger
}

// NewReconciler creates a new duplicate reconciler
func NewReconciler(
	connections ports.ConnectionRepository,
	orders ports.OrderRepository,
	opts ReconcilerOptions,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		connections: connections,
		orders:      orders,
		opts:        opts,
		logger:      logger,
	}
}

// Reconcile runs both detection passes for a tenant and reports what it did.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string) (*domain.ReconcileReport, error) {
	report := &domain.ReconcileReport{TenantID: tenantID}

	if err := r.reconcileByExternalID(ctx, tenantID, report); err != nil {
		return report, err
	}
	if err := r.reconcileByOrderNumber(ctx, tenantID, report); err != nil {
		return report, err
	}

	r.logger.Info().
		Str("tenantId", tenantID).
		Int("groups", report.GroupsExamined).
		Int("deleted", report.OrdersDeleted).
		Int("backfilled", report.IDsBackfilled).
		Msg("duplicate reconciliation finished")
	return report, nil
}

// reconcileByExternalID groups orders by external order id and keeps the
// oldest copy of each group.
func (r *Reconciler) reconcileByExternalID(ctx context.Context, tenantID string, report *domain.ReconcileReport) error {
	orders, err := r.orders.ListWithExternalID(ctx, tenantID)
	if err != nil {
		return err
	}

	groups := make(map[string][]*domain.Order)
	for _, o := range orders {
		groups[o.ExternalOrderID] = append(groups[o.ExternalOrderID], o)
	}

	for externalID, group := range groups {
		if len(group) < 2 {
			continue
		}
		report.GroupsExamined++
		// Lists come back oldest first; everything after the head is a
		// duplicate.
		for _, dup := range group[1:] {
			if err := r.orders.Delete(ctx, tenantID, dup.ID); err != nil {
				return err
			}
			report.OrdersDeleted++
		}
		r.logger.Debug().
			Str("tenantId", tenantID).
			Str("externalOrderId", externalID).
			Int("removed", len(group)-1).
			Msg("removed duplicate orders by external id")
	}
	return nil
}

// reconcileByOrderNumber groups sell orders whose invoice number looks
// remote-assigned, keeps the oldest of each group, and backfills its external
// order id from a deleted sibling when the kept record is missing it.
func (r *Reconciler) reconcileByOrderNumber(ctx context.Context, tenantID string, report *domain.ReconcileReport) error {
	predicate := r.opts.OrderNumberPredicate
	if predicate == nil {
		minDigits := domain.DefaultOrderNumberMinDigits
		conn, err := r.connections.GetByTenantID(ctx, tenantID)
		if err != nil {
			return err
		}
		if conn != nil && conn.OrderNumberMinDigits > 0 {
			minDigits = conn.OrderNumberMinDigits
		}
		predicate = DefaultOrderNumberPredicate(minDigits)
	}

	orders, err := r.orders.ListSellOrders(ctx, tenantID)
	if err != nil {
		return err
	}

	groups := make(map[string][]*domain.Order)
	for _, o := range orders {
		if !predicate(o.InvoiceNo) {
			continue
		}
		report.NumericExamined++
		groups[o.InvoiceNo] = append(groups[o.InvoiceNo], o)
	}

	for invoiceNo, group := range groups {
		if len(group) < 2 {
			continue
		}
		report.GroupsExamined++

		kept := group[0]
		if kept.ExternalOrderID == "" {
			for _, sibling := range group[1:] {
				if sibling.ExternalOrderID != "" {
					kept.ExternalOrderID = sibling.ExternalOrderID
					if err := r.orders.Save(ctx, kept); err != nil {
						return err
					}
					report.IDsBackfilled++
					break
				}
			}
		}

		for _, dup := range group[1:] {
			if err := r.orders.Delete(ctx, tenantID, dup.ID); err != nil {
				return err
			}
			report.OrdersDeleted++
		}
		r.logger.Debug().
			Str("tenantId", tenantID).
			Str("invoiceNo", invoiceNo).
			Int("removed", len(group)-1).
			Msg("removed duplicate orders by order number")
	}
	return nil
}
