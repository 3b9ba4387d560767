package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/store/storetest"
	"github.com/sawpanic/crewrun/internal/tabular"
)

var fixedNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

func testReconciler() *Reconciler {
	return &Reconciler{Now: func() time.Time { return fixedNow }}
}

func fixture() *store.Snapshot {
	snap := storetest.Snapshot(
		storetest.Influencer("a1", 1000, map[domain.Brand]int{"MLB": 3}),
		storetest.Influencer("b2", 1000, map[domain.Brand]int{"MLB": 3}),
	)
	snap.History = []domain.Assignment{
		storetest.Assignment("a1", "MLB", 9),
		storetest.Assignment("b2", "MLB", 9),
		storetest.Assignment("a1", "MLB", 10),
	}
	snap.Executions = []domain.Execution{
		storetest.Execution("a1", "MLB", 9, 1),
	}
	return snap
}

func intp(n int) *int       { return &n }
func strp(s string) *string { return &s }

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL(""))
	assert.NoError(t, ValidateURL("https://www.instagram.com/p/abc/"))
	assert.ErrorIs(t, ValidateURL("instagram.com/p/abc"), domain.ErrInvalidURL)
	assert.ErrorIs(t, ValidateURL("ftp://host/x"), domain.ErrInvalidURL)
}

func TestMarkExecutedAndRevert(t *testing.T) {
	snap := fixture()
	r := testReconciler()

	n, err := r.MarkExecuted(snap, []domain.Key{
		storetest.Key("a1", "MLB", 9),
		storetest.Key("b2", "MLB", 9),
		storetest.Key("zz", "MLB", 9),
	})
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	assert.Equal(t, 1, n, "already executed row is unchanged")
	require.Len(t, snap.Executions, 2)
	assert.True(t, snap.Completed(storetest.Key("b2", "MLB", 9)))
	assert.Equal(t, fixedNow, snap.Executions[1].UpdatedAt)
	assert.Equal(t, "name-b2", snap.Executions[1].Name)

	n, err = r.Revert(snap, []domain.Key{storetest.Key("b2", "MLB", 9)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, snap.Executions, 1, "reverted row without url is dropped")
}

func TestRevertKeepsRowWithURL(t *testing.T) {
	snap := fixture()
	snap.Executions[0].URL = "https://x.test/p/1"

	_, err := testReconciler().Revert(snap, []domain.Key{storetest.Key("a1", "MLB", 9)})
	require.NoError(t, err)
	require.Len(t, snap.Executions, 1)
	assert.Equal(t, 0, snap.Executions[0].Count)
	assert.Equal(t, "https://x.test/p/1", snap.Executions[0].URL)
}

func TestSetURL(t *testing.T) {
	snap := fixture()
	r := testReconciler()
	key := storetest.Key("a1", "MLB", 10)

	changed, err := r.SetURL(snap, key, " https://x.test/p/2 ")
	require.NoError(t, err)
	assert.True(t, changed)
	i := snap.FindExecution(key)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "https://x.test/p/2", snap.Executions[i].URL)
	assert.Equal(t, 0, snap.Executions[i].Count)

	changed, err = r.SetURL(snap, key, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, -1, snap.FindExecution(key))

	_, err = r.SetURL(snap, key, "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	_, err = r.SetURL(snap, storetest.Key("zz", "MLB", 10), "https://x.test")
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
}

func TestApplyMerge(t *testing.T) {
	snap := fixture()
	executed := domain.StatusExecuted

	rep, err := testReconciler().Apply(snap, []Record{
		{Row: 2, Key: storetest.Key("a1", "MLB", 9), Count: intp(1)},
		{Row: 3, Key: storetest.Key("b2", "MLB", 9), Count: intp(0)},
		{Row: 4, Key: storetest.Key("b2", "MLB", 9), Status: &executed, URL: strp("https://x.test/b2")},
		{Row: 5, Key: storetest.Key("a1", "MLB", 10), URL: strp("https://x.test/a1")},
	}, ModeMerge)
	require.NoError(t, err)

	assert.True(t, rep.Applied)
	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Equal(t, 1, rep.Duplicates)
	assert.True(t, rep.Changed())
	require.Len(t, snap.Executions, 3)
	assert.True(t, snap.Completed(storetest.Key("b2", "MLB", 9)))
	assert.False(t, snap.Completed(storetest.Key("a1", "MLB", 10)))
}

func TestApplyIsAllOrNothing(t *testing.T) {
	snap := fixture()
	before := append([]domain.Execution(nil), snap.Executions...)

	rep, err := testReconciler().Apply(snap, []Record{
		{Row: 2, Key: storetest.Key("b2", "MLB", 9), Count: intp(1)},
		{Row: 3, Key: storetest.Key("b2", "MLB", 9), Count: intp(2)},
		{Row: 4, Key: storetest.Key("zz", "MLB", 9), Count: intp(1)},
		{Row: 5, Key: storetest.Key("a1", "MLB", 10), URL: strp("nope")},
	}, ModeMerge)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidExecutionCount)
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.False(t, rep.Applied)
	assert.Len(t, rep.Errors, 3)
	assert.Equal(t, before, snap.Executions)
}

func TestApplyStatusConflict(t *testing.T) {
	snap := fixture()
	assigned := domain.StatusAssigned
	_, err := testReconciler().Apply(snap, []Record{
		{Row: 2, Key: storetest.Key("b2", "MLB", 9), Count: intp(1), Status: &assigned},
	}, ModeMerge)
	assert.ErrorIs(t, err, domain.ErrInvalidExecutionCount)
}

func TestApplyReplace(t *testing.T) {
	snap := fixture()

	rep, err := testReconciler().Apply(snap, []Record{
		{Row: 2, Key: storetest.Key("b2", "MLB", 9), Count: intp(1)},
	}, ModeReplace)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Removed)
	require.Len(t, snap.Executions, 1)
	assert.Equal(t, storetest.Key("b2", "MLB", 9), snap.Executions[0].Key)
}

func TestParseRecords(t *testing.T) {
	doc := "브랜드,ID,이름,배정월,실제집행수,집행URL\n" +
		"MLB,a1,Alice,9월,1,https://x.test/1\n" +
		"MLB,b2,Bob,9월,,\n" +
		"NIKE,c3,Cat,9월,1,\n" +
		"MLB,d4,Dan,5월,1,\n"
	tbl, err := tabular.ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)

	recs, rowErrs, err := ParseRecords(tbl, domain.DefaultBrands, storetest.Season)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, storetest.Key("a1", "MLB", 9), recs[0].Key)
	assert.Equal(t, 1, *recs[0].Count)
	assert.Equal(t, "https://x.test/1", *recs[0].URL)
	assert.Nil(t, recs[1].Count)
	assert.Nil(t, recs[1].URL)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 4, rowErrs[0].Row)
	assert.ErrorIs(t, rowErrs[0], domain.ErrUnknownBrand)
	assert.ErrorIs(t, rowErrs[1], domain.ErrInvalidMonth)
}

func TestParseRecordsMissingColumns(t *testing.T) {
	tbl, err := tabular.ReadCSV(strings.NewReader("ID,브랜드,배정월\na1,MLB,9월\n"))
	require.NoError(t, err)
	_, _, err = ParseRecords(tbl, domain.DefaultBrands, storetest.Season)
	assert.ErrorIs(t, err, domain.ErrMissingColumns)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("update")
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, m)
	_, err = ParseMode("append")
	assert.Error(t, err)
}

func TestOrphans(t *testing.T) {
	snap := fixture()
	snap.Executions = append(snap.Executions, storetest.Execution("zz", "MLB", 9, 1))

	got := Orphans(snap, fixedNow)
	assert.ElementsMatch(t, []Orphan{
		{Key: storetest.Key("zz", "MLB", 9), Kind: OrphanExecution},
		{Key: storetest.Key("b2", "MLB", 9), Kind: OrphanMissingExecution},
		{Key: storetest.Key("a1", "MLB", 10), Kind: OrphanMissingExecution},
	}, got)
}
