// Package ledger contains the AICTE point rules: duplicate collapsing,
// completion thresholds and admission parsing.
package ledger

import (
	"sort"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// GroupPlan is the repair for one (student, event) group.
type GroupPlan struct {
	// KeepID is the surviving row. Empty only for an empty group.
	KeepID string
	// NewPoints is set when the surviving row's points must be rewritten.
	NewPoints *int
	// DeleteIDs are removed in the same transaction.
	DeleteIDs []string
}

// Noop reports whether applying the plan changes nothing.
func (p GroupPlan) Noop() bool {
	return p.NewPoints == nil && len(p.DeleteIDs) == 0
}

// PlanGroup decides how to collapse the transactions of one (student, event)
// pair into a single canonical row:
//   - with APPROVED rows, the most recently updated APPROVED row absorbs the
//     points of every APPROVED row; other APPROVED and all PENDING rows go.
//     REJECTED rows stay.
//   - otherwise, with PENDING rows, the newest PENDING row stays and the other
//     PENDING rows go.
//   - otherwise the newest row stays and the rest go.
func PlanGroup(txs []models.AICTETransaction) GroupPlan {
	if len(txs) == 0 {
		return GroupPlan{}
	}

	sorted := make([]models.AICTETransaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return newer(sorted[i], sorted[j]) })

	var approved, pending []models.AICTETransaction
	for _, tx := range sorted {
		switch tx.Status {
		case models.TransactionApproved:
			approved = append(approved, tx)
		case models.TransactionPending:
			pending = append(pending, tx)
		}
	}

	switch {
	case len(approved) > 0:
		keep := approved[0]
		total := 0
		for _, tx := range approved {
			total += tx.PointsAllocated
		}
		plan := GroupPlan{KeepID: keep.ID, DeleteIDs: append(ids(approved[1:]), ids(pending)...)}
		if total != keep.PointsAllocated {
			plan.NewPoints = &total
		}
		return plan
	case len(pending) > 0:
		return GroupPlan{KeepID: pending[0].ID, DeleteIDs: ids(pending[1:])}
	default:
		return GroupPlan{KeepID: sorted[0].ID, DeleteIDs: ids(sorted[1:])}
	}
}

// newer orders by updated_at desc, then created_at desc, then id for a stable pick.
func newer(a, b models.AICTETransaction) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func ids(txs []models.AICTETransaction) []string {
	if len(txs) == 0 {
		return nil
	}
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

// Apply returns the rows that remain after plan, with points rewritten.
func Apply(txs []models.AICTETransaction, plan GroupPlan) []models.AICTETransaction {
	drop := make(map[string]struct{}, len(plan.DeleteIDs))
	for _, id := range plan.DeleteIDs {
		drop[id] = struct{}{}
	}
	out := make([]models.AICTETransaction, 0, len(txs))
	for _, tx := range txs {
		if _, gone := drop[tx.ID]; gone {
			continue
		}
		if tx.ID == plan.KeepID && plan.NewPoints != nil {
			tx.PointsAllocated = *plan.NewPoints
		}
		out = append(out, tx)
	}
	return out
}
