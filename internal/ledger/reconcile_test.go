package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

var base = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func tx(id string, status models.TransactionStatus, points int, updatedOffset time.Duration) models.AICTETransaction {
	return models.AICTETransaction{
		ID:              id,
		StudentID:       "student-1",
		EventID:         "event-1",
		Status:          status,
		PointsAllocated: points,
		CreatedAt:       base,
		UpdatedAt:       base.Add(updatedOffset),
	}
}

func TestPlanGroupApprovedSupersedesPending(t *testing.T) {
	group := []models.AICTETransaction{
		tx("approved", models.TransactionApproved, 20, 0),
		tx("pending", models.TransactionPending, 15, time.Hour),
	}

	plan := PlanGroup(group)
	assert.Equal(t, "approved", plan.KeepID)
	assert.Nil(t, plan.NewPoints)
	assert.Equal(t, []string{"pending"}, plan.DeleteIDs)

	after := Apply(group, plan)
	require.Len(t, after, 1)
	assert.Equal(t, models.TransactionApproved, after[0].Status)
	assert.Equal(t, 20, after[0].PointsAllocated)
}

func TestPlanGroupSumsApproved(t *testing.T) {
	group := []models.AICTETransaction{
		tx("a1", models.TransactionApproved, 10, 0),
		tx("a2", models.TransactionApproved, 5, 2*time.Hour),
		tx("a3", models.TransactionApproved, 3, time.Hour),
		tx("p1", models.TransactionPending, 7, 3*time.Hour),
		tx("r1", models.TransactionRejected, 9, 4*time.Hour),
	}

	plan := PlanGroup(group)
	assert.Equal(t, "a2", plan.KeepID)
	require.NotNil(t, plan.NewPoints)
	assert.Equal(t, 18, *plan.NewPoints)
	assert.ElementsMatch(t, []string{"a3", "a1", "p1"}, plan.DeleteIDs)

	after := Apply(group, plan)
	require.Len(t, after, 2)
	statuses := map[string]models.TransactionStatus{}
	for _, row := range after {
		statuses[row.ID] = row.Status
	}
	assert.Equal(t, map[string]models.TransactionStatus{"a2": models.TransactionApproved, "r1": models.TransactionRejected}, statuses)
}

func TestPlanGroupPendingOnly(t *testing.T) {
	group := []models.AICTETransaction{
		tx("old", models.TransactionPending, 10, 0),
		tx("new", models.TransactionPending, 12, time.Hour),
		tx("rejected", models.TransactionRejected, 10, 2*time.Hour),
	}
	plan := PlanGroup(group)
	assert.Equal(t, "new", plan.KeepID)
	assert.Nil(t, plan.NewPoints)
	assert.Equal(t, []string{"old"}, plan.DeleteIDs)
}

func TestPlanGroupFallbackKeepsNewest(t *testing.T) {
	group := []models.AICTETransaction{
		tx("r-old", models.TransactionRejected, 10, 0),
		tx("r-new", models.TransactionRejected, 10, time.Minute),
		tx("weird", models.TransactionStatus("UNKNOWN"), 10, -time.Minute),
	}
	plan := PlanGroup(group)
	assert.Equal(t, "r-new", plan.KeepID)
	assert.ElementsMatch(t, []string{"r-old", "weird"}, plan.DeleteIDs)
}

func TestPlanGroupIsIdempotent(t *testing.T) {
	groups := [][]models.AICTETransaction{
		{tx("a", models.TransactionApproved, 20, 0), tx("p", models.TransactionPending, 15, time.Hour)},
		{tx("a1", models.TransactionApproved, 10, 0), tx("a2", models.TransactionApproved, 5, time.Hour)},
		{tx("p1", models.TransactionPending, 10, 0), tx("p2", models.TransactionPending, 5, time.Hour)},
		{tx("r1", models.TransactionRejected, 10, 0), tx("r2", models.TransactionRejected, 5, time.Hour)},
	}

	for _, group := range groups {
		first := Apply(group, PlanGroup(group))
		second := PlanGroup(first)
		assert.True(t, second.Noop(), "second pass must not change %v", first)
	}
}

func TestPlanGroupTieBreaksDeterministically(t *testing.T) {
	group := []models.AICTETransaction{
		tx("b", models.TransactionPending, 1, 0),
		tx("a", models.TransactionPending, 1, 0),
	}
	assert.Equal(t, "b", PlanGroup(group).KeepID)
	reversed := []models.AICTETransaction{group[1], group[0]}
	assert.Equal(t, "b", PlanGroup(reversed).KeepID)
}

func TestPlanGroupEmpty(t *testing.T) {
	assert.True(t, PlanGroup(nil).Noop())
}
