package store

import (
	"testing"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(0, 500))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 500))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
	assert.Equal(t, [][2]int{{0, 7}}, chunks(7, 0))
}

func TestCollapseStaging_LastWins(t *testing.T) {
	out := collapseStaging([]domain.StagingRecord{
		{EventKey: "a", Status: domain.NewNullString("1")},
		{EventKey: "b"},
		{EventKey: "a", Status: domain.NewNullString("2")},
	})

	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].EventKey)
	assert.Equal(t, "2", out[0].Status.String)
}

func TestCollapseUniques_FirstWins(t *testing.T) {
	first := domain.UniqueLead{Day: "2025-09-15", TID: "t", Cost: decimal.NewNullDecimal(decimal.RequireFromString("1"))}
	second := first
	second.Cost = decimal.NullDecimal{}

	out := collapseUniques([]domain.UniqueLead{first, second})
	assert.Len(t, out, 1)
	assert.True(t, out[0].Cost.Valid)
}

func TestDecimalArg(t *testing.T) {
	assert.Nil(t, decimalArg(decimal.NullDecimal{}))

	s := decimalArg(decimal.NewNullDecimal(decimal.RequireFromString("0.1")))
	if assert.NotNil(t, s) {
		assert.Equal(t, "0.10", *s)
	}
}
