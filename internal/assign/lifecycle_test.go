package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/store/storetest"
)

func seasonHistory() *store.Snapshot {
	snap := roster()
	snap.History = []domain.Assignment{
		storetest.Assignment("a1", "MLB", 9),
		storetest.Assignment("b2", "MLB", 9),
		storetest.Assignment("a1", "MLB", 10),
		storetest.Assignment("b2", "MLB", 11),
	}
	snap.Executions = []domain.Execution{
		storetest.Execution("a1", "MLB", 9, 1),
		storetest.Execution("b2", "MLB", 9, 0),
		storetest.Execution("b2", "MLB", 11, 0),
	}
	return snap
}

func TestDelete(t *testing.T) {
	snap := seasonHistory()

	res, err := testEngine(true).Delete(snap, []domain.Key{
		storetest.Key("a1", "MLB", 9),
		storetest.Key("b2", "MLB", 9),
		storetest.Key("zz", "MLB", 9),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExecutionCompleted)
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	assert.Equal(t, []domain.Key{storetest.Key("b2", "MLB", 9)}, res.Removed)
	assert.Equal(t, []domain.Key{storetest.Key("a1", "MLB", 9)}, res.Refused)
	assert.Equal(t, []domain.Key{storetest.Key("zz", "MLB", 9)}, res.NotFound)

	assert.Len(t, snap.History, 3)
	assert.Equal(t, -1, snap.FindExecution(storetest.Key("b2", "MLB", 9)))
	assert.GreaterOrEqual(t, snap.FindExecution(storetest.Key("a1", "MLB", 9)), 0)
}

func TestReset(t *testing.T) {
	oct := storetest.M(10)
	tests := []struct {
		name        string
		req         ResetRequest
		wantHistory int
		wantExec    int
		left        int
	}{
		{"single month", ResetRequest{Month: &oct}, 1, 0, 3},
		{"cascade", ResetRequest{Month: &oct, Cascade: true}, 2, 1, 2},
		{"everything", ResetRequest{}, 4, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := seasonHistory()
			res := testEngine(true).Reset(snap, tt.req)
			assert.Equal(t, tt.wantHistory, res.History)
			assert.Equal(t, tt.wantExec, res.Executions)
			assert.Len(t, snap.History, tt.left)
		})
	}
}

func TestPlan(t *testing.T) {
	snap := roster()
	targets := []domain.Target{
		{Month: storetest.M(9), Brand: "MLB", Quantity: 2},
		{Month: storetest.M(9), Brand: "DX", Quantity: 1},
		{Month: storetest.M(10), Brand: "MLB", Quantity: 3},
		{Month: storetest.M(11), Brand: "MLB", Quantity: 0},
	}

	res, err := testEngine(true).Plan(snap, storetest.Season, targets)
	require.NoError(t, err)

	require.Len(t, res.Runs, 2)
	assert.Equal(t, []PlanRow{
		{Month: storetest.M(9), Brand: "MLB", Target: 2, Assigned: 2},
		{Month: storetest.M(9), Brand: "DX", Target: 1, Assigned: 1},
		{Month: storetest.M(10), Brand: "MLB", Target: 3, Assigned: 2, Difference: 1},
	}, res.Rows)
	assert.Equal(t, 5, res.Assigned())
}

func TestPlanOnlyMonths(t *testing.T) {
	snap := roster()
	targets := []domain.Target{
		{Month: storetest.M(9), Brand: "MLB", Quantity: 1},
		{Month: storetest.M(10), Brand: "MLB", Quantity: 1},
	}
	res, err := testEngine(true).Plan(snap, storetest.Season, targets, storetest.M(10))
	require.NoError(t, err)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, storetest.M(10), res.Runs[0].Month)
}
