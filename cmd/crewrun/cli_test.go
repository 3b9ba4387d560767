package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/store/storetest"
)

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	st := store.New(dir, domain.DefaultBrands, storetest.Season)
	snap := storetest.Snapshot(
		storetest.Influencer("a1", 5000, map[domain.Brand]int{"MLB": 2}),
		storetest.Influencer("b2", 9000, map[domain.Brand]int{"MLB": 1}),
	)
	require.NoError(t, st.Save(context.Background(), snap))
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--data-dir", dir, "--season", "25FW"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIWorkflow(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, dir, "assign", "manual", "a1", "MLB", "--month", "9월")
	require.NoError(t, err, out)
	assert.Contains(t, out, "assigned 25FW/9월 MLB a1")

	out, err = run(t, dir, "gate", "--month", "10월")
	require.NoError(t, err, out)
	assert.Contains(t, out, "blocked by 1 incomplete")

	out, err = run(t, dir, "exec", "complete", "a1:MLB:9월", "b2:MLB:9월")
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	assert.Contains(t, out, "completed 1 of 2")

	out, err = run(t, dir, "view", "results", "--format", "csv")
	require.NoError(t, err, out)
	assert.Contains(t, out, "a1")

	out, err = run(t, dir, "doctor", "--json")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"healthy": true`)
}

func TestResetNeedsConfirmation(t *testing.T) {
	dir := seedDir(t)
	_, err := run(t, dir, "reset")
	assert.ErrorContains(t, err, "--yes")
}

func TestMirrorDisabled(t *testing.T) {
	dir := seedDir(t)
	_, err := run(t, dir, "mirror")
	assert.ErrorContains(t, err, "disabled")
}
