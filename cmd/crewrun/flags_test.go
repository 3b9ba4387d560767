package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
)

func TestMonthFlag(t *testing.T) {
	var m monthFlag
	assert.False(t, m.IsSet())
	require.NoError(t, m.Set("10월"))
	assert.True(t, m.IsSet())
	assert.Equal(t, "month", m.Type())

	got, err := m.Resolve("25FW")
	require.NoError(t, err)
	assert.Equal(t, domain.Month{Season: "25FW", Number: 10}, got)

	require.NoError(t, m.Set("4월"), "spring months are valid labels")
	_, err = m.Resolve("25FW")
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	assert.Error(t, m.Set("october"))
}

func TestQuantityFlag(t *testing.T) {
	var q quantityFlag
	require.NoError(t, q.Set("mlb=3"))
	require.NoError(t, q.Set("DX=2, MLB=1"))
	assert.Equal(t, map[string]int{"MLB": 4, "DX": 2}, q.values)
	assert.Equal(t, "DX=2,MLB=4", q.String())

	tests := []string{"MLB", "MLB=x", "MLB=-1"}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Error(t, (&quantityFlag{}).Set(in))
		})
	}
}
