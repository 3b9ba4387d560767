package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeason(t *testing.T) {
	s, err := ParseSeason(" 25fw ")
	require.NoError(t, err)
	assert.Equal(t, Season("25FW"), s)
	assert.Equal(t, 2025, s.Year())
	assert.Equal(t, []int{9, 10, 11, 12, 1, 2}, s.Months())
	assert.Equal(t, 2026, s.CalendarYear(1))

	_, err = ParseSeason("2025FW")
	assert.ErrorIs(t, err, ErrInvalidSeason)
}

func TestSeasonFor(t *testing.T) {
	tests := []struct {
		year, month int
		want        Season
	}{
		{2025, 9, "25FW"},
		{2026, 2, "25FW"},
		{2026, 3, "26SS"},
		{2026, 8, "26SS"},
		{2000, 1, "99FW"},
	}
	for _, tt := range tests {
		got, err := SeasonFor(tt.year, tt.month)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d-%02d", tt.year, tt.month)
	}
	_, err := SeasonFor(2025, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestParseMonth(t *testing.T) {
	fw := Season("25FW")
	tests := []struct {
		label    string
		fallback Season
		want     Month
		wantErr  error
	}{
		{"9월", fw, Month{fw, 9}, nil},
		{" 1 월", fw, Month{fw, 1}, nil},
		{"10", fw, Month{fw, 10}, nil},
		{"25FW/12월", "", Month{fw, 12}, nil},
		{"2026-02", "", Month{fw, 2}, nil},
		{"25년 9월", fw, Month{fw, 9}, nil},
		{"2026-02", "26SS", Month{}, ErrInvalidMonth},
		{"5월", fw, Month{}, ErrInvalidMonth},
		{"9월", "", Month{}, ErrInvalidMonth},
		{"", fw, Month{}, ErrInvalidMonth},
		{"XX/9월", fw, Month{}, ErrInvalidSeason},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseMonth(tt.label, tt.fallback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthOrderAndText(t *testing.T) {
	dec := Month{"25FW", 12}
	jan := Month{"25FW", 1}
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.False(t, dec.Before(Month{"26SS", 3}), "months of different seasons are not ordered")
	assert.Equal(t, "25FW/12월", dec.String())
	assert.Equal(t, "12월", dec.Label())

	b, err := json.Marshal(struct {
		M Month `json:"m"`
		Z Month `json:"z"`
	}{M: jan})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"25FW/1월","z":""}`, string(b))

	var back struct {
		M Month `json:"m"`
		Z Month `json:"z"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, jan, back.M)
	assert.True(t, back.Z.IsZero())
}

func TestParseBrand(t *testing.T) {
	b, err := ParseBrand(" mlb ", DefaultBrands)
	require.NoError(t, err)
	assert.Equal(t, Brand("MLB"), b)
	assert.Equal(t, "mlb_qty", b.QuotaColumn())

	_, err = ParseBrand("NIKE", DefaultBrands)
	assert.ErrorIs(t, err, ErrUnknownBrand)

	list, err := ParseBrandList("DX, ST,", DefaultBrands)
	require.NoError(t, err)
	assert.Equal(t, []Brand{"DX", "ST"}, list)
	_, err = ParseBrandList(" , ", DefaultBrands)
	assert.ErrorIs(t, err, ErrUnknownBrand)

	assert.Equal(t, 2, BrandIndex(DefaultBrands, "DV"))
	assert.Equal(t, -1, BrandIndex(DefaultBrands, "X"))
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"✅ 집행완료", "executed", "Done"} {
		s, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, StatusExecuted, s)
	}
	s, err := ParseStatus("📋 배정완료")
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, s)
	assert.Equal(t, "✅ 집행완료", StatusExecuted.Label())

	_, err = ParseStatus("maybe")
	assert.Error(t, err)
}

func TestExecutionStatus(t *testing.T) {
	e := Execution{Count: 0}
	assert.Equal(t, StatusAssigned, e.Status())
	e.Count = 1
	assert.True(t, e.Completed())
	assert.Equal(t, StatusExecuted, e.Status())
}

func TestInfluencerQuota(t *testing.T) {
	inf := Influencer{Quotas: map[Brand]int{"MLB": 2, "DX": 1, "X": 9}}
	assert.Equal(t, 2, inf.Quota("MLB"))
	assert.Equal(t, 0, inf.Quota("ST"))
	assert.Equal(t, 3, inf.TotalQuota(DefaultBrands))
}

func TestDefaultTargets(t *testing.T) {
	targets := DefaultTargets("26SS", []Brand{"MLB", "DX"})
	require.Len(t, targets, 12)
	assert.Equal(t, Target{Month: Month{"26SS", 3}, Brand: "MLB"}, targets[0])
	assert.Equal(t, Target{Month: Month{"26SS", 8}, Brand: "DX"}, targets[11])
}
