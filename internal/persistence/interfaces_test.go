package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store/storetest"
)

func TestFromSnapshot(t *testing.T) {
	snap := storetest.Snapshot(storetest.Influencer("a1", 10, map[domain.Brand]int{"MLB": 2, "DX": 0}))
	a := storetest.Assignment("a1", "MLB", 9)
	a.AssignedAt = time.Date(2025, 9, 1, 18, 0, 0, 0, time.FixedZone("KST", 9*3600))
	snap.History = []domain.Assignment{a}
	snap.Executions = []domain.Execution{storetest.Execution("a1", "MLB", 9, 1)}
	snap.Targets = []domain.Target{{Month: storetest.M(9), Brand: "MLB", Quantity: 4}}

	tables := FromSnapshot(snap)

	require.Len(t, tables.Influencers, 1)
	assert.Equal(t, []QuotaRow{{InfluencerID: "a1", Brand: "MLB", Quantity: 2}}, tables.Quotas, "zero quotas are skipped")
	require.Len(t, tables.Assignments, 1)
	assert.Equal(t, "2025-09-01T09:00:00Z", tables.Assignments[0].AssignedAt)
	assert.Equal(t, a.Key, tables.Assignments[0].Key())
	assert.Equal(t, 1, tables.Executions[0].Executed)
	assert.Equal(t, "", tables.Executions[0].UpdatedAt)
	assert.Equal(t, TargetRow{Season: "25FW", Month: 9, Brand: "MLB", Quantity: 4}, tables.Targets[0])
}
