package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/persistence"
	"github.com/sawpanic/crewrun/internal/store/storetest"
)

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())
	assert.Nil(t, m.Repository())
	assert.True(t, m.Health().Health(context.Background()).Healthy)
	assert.NoError(t, m.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	assert.Error(t, cfg.Validate(), "dsn required")

	cfg.DSN = "x"
	cfg.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestSQLiteMirror(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Driver = "sqlite"
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "mirror.db")

	m, err := NewManager(ctx, cfg)
	require.NoError(t, err)
	defer m.Close()
	require.True(t, m.IsEnabled())

	snap := storetest.Snapshot(
		storetest.Influencer("a1", 10, map[domain.Brand]int{"MLB": 2, "DX": 1}),
		storetest.Influencer("b2", 20, map[domain.Brand]int{"MLB": 1}),
	)
	snap.History = []domain.Assignment{
		storetest.Assignment("b2", "MLB", 1),
		storetest.Assignment("a1", "MLB", 10),
		storetest.Assignment("a1", "DX", 9),
	}
	snap.Executions = []domain.Execution{storetest.Execution("a1", "DX", 9, 1)}

	repo := m.Repository().Mirror
	require.NoError(t, repo.Replace(ctx, persistence.FromSnapshot(snap)))
	// a second replace must not duplicate rows
	require.NoError(t, repo.Replace(ctx, persistence.FromSnapshot(snap)))

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"influencers":       2,
		"influencer_quotas": 3,
		"assignments":       3,
		"executions":        1,
		"monthly_targets":   0,
	}, counts)

	rows, err := repo.Assignments(ctx, "25FW")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, storetest.Key("a1", "DX", 9), rows[0].Key())
	assert.Equal(t, storetest.Key("a1", "MLB", 10), rows[1].Key())
	assert.Equal(t, storetest.Key("b2", "MLB", 1), rows[2].Key())

	assert.True(t, m.Health().Health(ctx).Healthy)
}
