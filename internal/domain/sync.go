package domain

import "time"

// SyncReport aggregates the outcome of one sync run. Per-entity failures are
// counted here and logged; they never abort the run.
type SyncReport struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Kind       string    `json:"kind"` // "products" or "orders"
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Pages      int       `json:"pages"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Processed is the number of entities the run handled in any way.
func (r *SyncReport) Processed() int {
	return r.Created + r.Updated + r.Skipped + r.Failed
}

// ReconcileReport aggregates a duplicate-cleanup run.
type ReconcileReport struct {
	TenantID        string `json:"tenant_id"`
	GroupsExamined  int    `json:"groups_examined"`
	OrdersDeleted   int    `json:"orders_deleted"`
	IDsBackfilled   int    `json:"ids_backfilled"`
	NumericExamined int    `json:"numeric_examined"`
}
