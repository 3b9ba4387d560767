package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
)

const legacyRoster = `id,name,follower,unit_fee,sec_usage,sec_period,contract_sesn,mlb_qty,dx_qty,dv_qty,st_qty,total_qty,memo
a1,Alice,"12,000",150000,Y,3개월,25FW,2,1,0,0,3,vip
b2,Bob,9000,90000,N,,25FW,1,0,0,0,1,
`

const legacyHistory = `브랜드,ID,이름,배정월,FLW,1회계약단가,2차활용,브랜드_계약수,브랜드_실집행수,브랜드_잔여수,전체_계약수,전체_실집행수,전체_잔여수,집행URL,상태
"MLB, DX",a1,Alice,9월,12000,150000,Y,2,0,2,3,0,3,,📋 배정완료
MLB,b2,,10월,0,0,,0,0,0,0,0,0,,📋 배정완료
`

const legacyExecutions = `ID,이름,브랜드,배정월,실제집행수
a1,Alice,MLB,9월,1.0
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func newLegacyStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "influencer.csv", legacyRoster)
	writeFile(t, dir, "assignment_history.csv", legacyHistory)
	writeFile(t, dir, "execution_status.csv", legacyExecutions)
	return New(dir, nil, "25FW")
}

func TestLoadLegacyTables(t *testing.T) {
	s := newLegacyStore(t)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Roster, 2)
	alice := snap.Roster[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, 12000, alice.Followers)
	assert.Equal(t, 2, alice.Quota("MLB"))
	assert.Equal(t, domain.Season("25FW"), alice.ContractSeason)
	assert.Equal(t, []domain.ExtraColumn{{Header: "memo", Value: "vip"}}, alice.Extra)

	require.Len(t, snap.History, 3, "comma separated brands split into rows")
	assert.Equal(t, domain.Brand("MLB"), snap.History[0].Brand)
	assert.Equal(t, domain.Brand("DX"), snap.History[1].Brand)
	assert.Equal(t, domain.Month{Season: "25FW", Number: 9}, snap.History[0].Month)

	require.Len(t, snap.Executions, 1)
	assert.True(t, snap.Executions[0].Completed())
	assert.True(t, snap.Completed(domain.Key{InfluencerID: "a1", Brand: "MLB", Month: domain.Month{Season: "25FW", Number: 9}}))
	assert.Empty(t, snap.Targets)
	assert.NotEmpty(t, snap.Revision)
}

func TestLoadCarriesHistoryURLs(t *testing.T) {
	s := newLegacyStore(t)
	writeFile(t, s.Dir, "assignment_history.csv", `브랜드,ID,배정월,집행URL,상태
MLB,a1,9월,https://instagram.com/p/a,✅ 집행완료
MLB,b2,10월,https://instagram.com/p/b,📋 배정완료
`)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Executions, 2)
	assert.Equal(t, "https://instagram.com/p/a", snap.Executions[0].URL)
	assert.Equal(t, 1, snap.Executions[0].Count)
	assert.Equal(t, "https://instagram.com/p/b", snap.Executions[1].URL)
	assert.Equal(t, 0, snap.Executions[1].Count)
}

func TestSaveHistoryKeepsCarriedExecutions(t *testing.T) {
	ctx := context.Background()
	s := newLegacyStore(t)
	require.NoError(t, os.Remove(s.Path(Executions)))
	writeFile(t, s.Dir, "assignment_history.csv", `브랜드,ID,이름,배정월,집행URL,상태
MLB,a1,Alice,9월,https://x.com/p,✅ 집행완료
`)
	done := domain.Key{InfluencerID: "a1", Brand: "MLB", Month: domain.Month{Season: "25FW", Number: 9}}

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, snap.Completed(done))
	assert.Equal(t, []Table{History, Executions}, snap.Touched(History))

	snap.History = append(snap.History, domain.Assignment{
		Key: domain.Key{InfluencerID: "b2", Brand: "MLB", Month: domain.Month{Season: "25FW", Number: 9}},
	})
	require.NoError(t, s.Save(ctx, snap, History))
	assert.Equal(t, []Table{History}, snap.Touched(History), "details are moved once")

	again, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, again.History, 2)
	assert.True(t, again.Completed(done))
	require.Len(t, again.Executions, 1)
	assert.Equal(t, "https://x.com/p", again.Executions[0].URL)
}

func TestTouchedWithoutLegacyDetails(t *testing.T) {
	snap, err := newLegacyStore(t).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Table{History}, snap.Touched(History))
	assert.Equal(t, []Table{Executions}, snap.Touched(Executions))
}

func TestLoadMissingRoster(t *testing.T) {
	s := New(t.TempDir(), nil, "25FW")
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrRosterMissing)
}

func TestLoadMissingColumns(t *testing.T) {
	s := newLegacyStore(t)
	writeFile(t, s.Dir, "execution_status.csv", "ID,이름\na1,Alice\n")

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumns)
	assert.Contains(t, err.Error(), "brand")
	assert.Contains(t, err.Error(), "month")
}

func TestLoadUnknownBrand(t *testing.T) {
	s := newLegacyStore(t)
	writeFile(t, s.Dir, "execution_status.csv", "ID,브랜드,배정월,실제집행수\na1,NIKE,9월,1\n")

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnknownBrand)
}

func TestSaveRoundTrip(t *testing.T) {
	s := newLegacyStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	before := snap.Revision

	at := time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)
	snap.History[2].AssignedAt = at
	snap.History[2].BatchID = "batch-1"
	snap.Executions[0].URL = "https://instagram.com/p/1"
	snap.Targets = domain.DefaultTargets("25FW", snap.Brands)

	require.NoError(t, s.Save(ctx, snap))
	assert.NotEqual(t, before, snap.Revision)

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Roster, again.Roster)
	assert.Equal(t, snap.Executions[0].URL, again.Executions[0].URL)
	assert.True(t, at.Equal(again.History[2].AssignedAt))
	assert.Equal(t, "batch-1", again.History[2].BatchID)
	assert.Len(t, again.Targets, 24)

	header, err := os.ReadFile(s.Path(History))
	require.NoError(t, err)
	assert.Contains(t, string(header), "season,month,brand,id,name")
}

func TestSaveEmptyWritesHeader(t *testing.T) {
	s := newLegacyStore(t)
	ctx := context.Background()
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	snap.Executions = nil
	require.NoError(t, s.Save(ctx, snap, Executions))

	body, err := os.ReadFile(s.Path(Executions))
	require.NoError(t, err)
	assert.Equal(t, "season,month,brand,id,name,executed,url,updated_at\n", string(body))
}

func TestRemove(t *testing.T) {
	s := newLegacyStore(t)
	require.NoError(t, s.Remove(History, Executions, Targets))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Executions)
	assert.Len(t, snap.Roster, 2)
}

func TestRevisionTracksExternalEdits(t *testing.T) {
	s := newLegacyStore(t)
	first, err := s.Revision()
	require.NoError(t, err)

	writeFile(t, s.Dir, "execution_status.csv", legacyExecutions+"b2,Bob,MLB,10월,1\n")
	second, err := s.Revision()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestBackfill(t *testing.T) {
	s := newLegacyStore(t)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	filled := Backfill(snap)

	bob := snap.History[2]
	assert.Equal(t, "Bob", bob.Name)
	assert.Equal(t, 9000, bob.Followers)
	assert.Equal(t, 90000, bob.UnitFee)
	assert.Equal(t, "N", bob.SecondaryUsage)
	assert.Equal(t, 1, bob.Counters.BrandContract)
	assert.Equal(t, 1, bob.Counters.TotalContract)
	assert.Equal(t, 6, filled)
	assert.Zero(t, Backfill(snap))
}
