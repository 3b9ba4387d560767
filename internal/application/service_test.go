package application

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/assign"
	"github.com/sawpanic/crewrun/internal/cache"
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/reconcile"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/store/storetest"
	"github.com/sawpanic/crewrun/internal/views"
)

var fixedNow = time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) AfterSave(_ context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recorder) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeKind, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Kind
	}
	return out
}

func newService(t *testing.T, c cache.Cache, history ...domain.Assignment) (*Service, *recorder) {
	t.Helper()
	st := store.New(t.TempDir(), domain.DefaultBrands, storetest.Season)
	snap := storetest.Snapshot(
		storetest.Influencer("a1", 5000, map[domain.Brand]int{"MLB": 2, "DX": 1}),
		storetest.Influencer("b2", 9000, map[domain.Brand]int{"MLB": 1}),
	)
	snap.History = history
	require.NoError(t, st.Save(context.Background(), snap))

	rec := &recorder{}
	svc := New(Options{Store: st, Cache: c, Hooks: []Hook{rec}})
	svc.now = func() time.Time { return fixedNow }
	return svc, rec
}

func manual(id string, b domain.Brand, month int) assign.ManualRequest {
	return assign.ManualRequest{Month: storetest.M(month), Brand: b, InfluencerID: id}
}

func TestAssignCompleteAndView(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil)

	a, err := svc.AssignManual(ctx, manual("a1", "MLB", 9))
	require.NoError(t, err)
	assert.Equal(t, storetest.Key("a1", "MLB", 9), a.Key)

	rows, err := svc.Results(ctx, views.Filter{Month: storetest.M(9)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StatusAssigned, rows[0].Status)

	_, err = svc.AssignManual(ctx, manual("a1", "MLB", 10))
	assert.ErrorIs(t, err, domain.ErrGateBlocked)

	n, err := svc.MarkExecuted(ctx, []domain.Key{a.Key})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err = svc.Results(ctx, views.Filter{Month: storetest.M(9)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StatusExecuted, rows[0].Status, "a new revision bypasses the cached view")

	_, err = svc.AssignManual(ctx, manual("a1", "MLB", 10))
	require.NoError(t, err)

	assert.Equal(t, []ChangeKind{ChangeAssignManual, ChangeComplete, ChangeAssignManual}, rec.kinds())
	assert.Equal(t, []string{"history"}, rec.changes[0].Tables)
	assert.Equal(t, []string{"executions"}, rec.changes[1].Tables)
	assert.NotNil(t, rec.changes[1].Snapshot)
}

func TestFailedOperationSavesNothing(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil, storetest.Assignment("a1", "MLB", 9))
	before, err := svc.Store().Revision()
	require.NoError(t, err)

	_, err = svc.AssignManual(ctx, manual("zz", "MLB", 9))
	assert.ErrorIs(t, err, domain.ErrUnknownInfluencer)
	_, err = svc.AssignManual(ctx, manual("a1", "MLB", 9))
	assert.ErrorIs(t, err, domain.ErrDuplicateAssignment)
	_, err = svc.MarkExecuted(ctx, []domain.Key{storetest.Key("b2", "MLB", 9)})
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)

	after, err := svc.Store().Revision()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, rec.kinds())
}

func TestAssignKeepsLegacyCompletions(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil)
	st := svc.Store()
	require.NoError(t, os.Remove(st.Path(store.Executions)))
	require.NoError(t, os.WriteFile(st.Path(store.History),
		[]byte("브랜드,ID,이름,배정월,집행URL,상태\nMLB,a1,Alice,9월,https://x.com/p,✅ 집행완료\n"), 0644))

	_, err := svc.AssignManual(ctx, manual("b2", "MLB", 9))
	require.NoError(t, err)
	assert.Equal(t, []string{"history", "executions"}, rec.changes[0].Tables)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.History, 2)
	assert.True(t, snap.Completed(storetest.Key("a1", "MLB", 9)))

	_, err = svc.AssignManual(ctx, manual("a1", "MLB", 10))
	assert.NoError(t, err, "a completed legacy month opens the next one")
}

func TestDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil,
		storetest.Assignment("a1", "MLB", 9),
		storetest.Assignment("b2", "MLB", 9),
		storetest.Assignment("a1", "DX", 10),
	)
	_, err := svc.MarkExecuted(ctx, []domain.Key{storetest.Key("a1", "MLB", 9)})
	require.NoError(t, err)

	res, err := svc.DeleteAssignments(ctx, []domain.Key{storetest.Key("a1", "MLB", 9), storetest.Key("b2", "MLB", 9)})
	assert.ErrorIs(t, err, domain.ErrExecutionCompleted)
	assert.Equal(t, []domain.Key{storetest.Key("b2", "MLB", 9)}, res.Removed)

	m := storetest.M(10)
	reset, err := svc.Reset(ctx, assign.ResetRequest{Month: &m})
	require.NoError(t, err)
	assert.Equal(t, 1, reset.History)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.History, 1)
	assert.Equal(t, storetest.Key("a1", "MLB", 9), snap.History[0].Key)
	assert.Equal(t, []ChangeKind{ChangeComplete, ChangeDelete, ChangeReset}, rec.kinds())

	reset, err = svc.Reset(ctx, assign.ResetRequest{Month: &m})
	require.NoError(t, err)
	assert.Zero(t, reset.History)
	assert.Len(t, rec.kinds(), 3, "empty reset is not a change")
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil, storetest.Assignment("a1", "MLB", 9), storetest.Assignment("b2", "MLB", 9))

	doc := "brand,id,month,executed,url\nMLB,a1,9월,1,https://x.test/p\nMLB,b2,9월,0,\n"
	rep, err := svc.Upload(ctx, []byte(doc), "", reconcile.ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Inserted)
	assert.True(t, rep.Applied)

	rows, err := svc.Results(ctx, views.Filter{Month: storetest.M(9), Brand: "MLB"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://x.test/p", rows[0].URL)

	bad := "brand,id,month,executed\nMLB,b2,9월,1\nNIKE,a1,9월,1\n"
	rep, err = svc.Upload(ctx, []byte(bad), "", reconcile.ModeMerge)
	require.Error(t, err)
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], domain.ErrUnknownBrand)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Completed(storetest.Key("b2", "MLB", 9)), "rejected upload applies nothing")
	assert.Equal(t, []ChangeKind{ChangeUpload}, rec.kinds())
}

func TestImportRosterIntoEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "fnfcrew.csv")
	require.NoError(t, os.WriteFile(src, []byte(
		"sns_id,name,follower,mlb_cnt,dx_cnt,dv_cnt,st_cnt,total_cnt,total_amt_incl2nd,total_amt_exc2nd,contract_sesn,sec_usage,sec_period\n"+
			"a1,Alice,12000,2,1,0,0,3,600000,0,25FW,Y,\n"), 0o644))

	svc := New(Options{Store: store.New(dir, domain.DefaultBrands, storetest.Season)})
	n, err := svc.ImportRoster(ctx, src, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	roster, err := svc.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 200000, roster[0].UnitFee)
	assert.Equal(t, 2, roster[0].Quota("MLB"))
}

func TestTargetsAndPlan(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil)

	targets, err := svc.Targets(ctx, storetest.Season)
	require.NoError(t, err)
	assert.Len(t, targets, 6*len(domain.DefaultBrands))

	require.NoError(t, svc.SetTarget(ctx, domain.Target{Month: storetest.M(9), Brand: "MLB", Quantity: 1}))
	require.NoError(t, svc.SetTarget(ctx, domain.Target{Month: storetest.M(9), Brand: "MLB", Quantity: 1}))
	assert.Error(t, svc.SetTarget(ctx, domain.Target{Month: storetest.M(9), Brand: "NIKE", Quantity: 1}))

	targets, err = svc.Targets(ctx, storetest.Season)
	require.NoError(t, err)
	require.Len(t, targets, 1)

	res, err := svc.Plan(ctx, storetest.Season)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned())
	require.Len(t, res.Rows, 1)
	assert.Equal(t, assign.PlanRow{Month: storetest.M(9), Brand: "MLB", Target: 1, Assigned: 1}, res.Rows[0])
	assert.Equal(t, []ChangeKind{ChangeTargets, ChangePlan}, rec.kinds())
}

func TestViewsAreCachedByRevision(t *testing.T) {
	ctx := context.Background()
	c := cache.New()
	svc, _ := newService(t, c, storetest.Assignment("a1", "MLB", 9))
	svc.AddHook(CacheHook{Cache: c})

	f := views.Filter{Season: storetest.Season}
	_, err := svc.Influencers(ctx, f)
	require.NoError(t, err)

	rev, err := svc.Store().Revision()
	require.NoError(t, err)
	_, ok := c.Get(ctx, ViewKey("influencers", rev, f.String()))
	assert.True(t, ok)

	_, err = svc.AssignManual(ctx, manual("b2", "MLB", 9))
	require.NoError(t, err)
	_, ok = c.Get(ctx, ViewKey("influencers", rev, f.String()))
	assert.False(t, ok, "purged after a change")
}

func TestBrandTotalsAndBrandList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil, storetest.Assignment("a1", "MLB", 9))

	assert.Equal(t, domain.DefaultBrands, svc.Brands())
	rows, err := svc.BrandTotals(ctx, storetest.Season)
	require.NoError(t, err)
	require.Len(t, rows, len(domain.DefaultBrands))
	assert.Equal(t, domain.Brand("MLB"), rows[0].Brand)
	assert.Equal(t, 3, rows[0].Contracted)
	assert.Equal(t, 1, rows[0].Assigned)
}

func TestExternalChange(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil, storetest.Assignment("a1", "MLB", 9))
	_, err := svc.AssignManual(ctx, manual("b2", "MLB", 9))
	require.NoError(t, err)

	svc.ExternalChange(ctx, []string{"assignment_history.csv"})
	assert.Len(t, rec.kinds(), 1, "own write is ignored")

	path := svc.Store().Path(store.History)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	svc.ExternalChange(ctx, []string{"assignment_history.csv"})
	require.Equal(t, []ChangeKind{ChangeAssignManual, ChangeExternal}, rec.kinds())
	assert.Equal(t, []string{"assignment_history"}, rec.changes[1].Tables)
}

func TestDoctor(t *testing.T) {
	svc, _ := newService(t, nil,
		storetest.Assignment("a1", "MLB", 9),
		storetest.Assignment("z9", "DX", 10),
	)
	d, err := svc.Doctor(context.Background())
	require.NoError(t, err)

	assert.False(t, d.Healthy)
	assert.Equal(t, []string{"z9"}, d.Unknown)
	assert.Len(t, d.Orphans, 2)
	assert.Equal(t, 2, d.Rows["history"])
	assert.Positive(t, d.Blanks)
	assert.Equal(t, fixedNow, d.CheckedAt)
}
