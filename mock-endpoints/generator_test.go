package main

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_OrderedAndUnique(t *testing.T) {
	start := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	g := newGenerator(gofakeit.New(7), start)

	events := g.Events(500)
	require.Len(t, events, 500)
	assert.Equal(t, 500, g.Count())

	keys := make(map[string]struct{}, len(events))
	for i, e := range events {
		_, dup := keys[e.EventKey]
		assert.False(t, dup, "duplicate key %s", e.EventKey)
		keys[e.EventKey] = struct{}{}

		if i > 0 {
			assert.False(t, e.CreatedAt.Before(events[i-1].CreatedAt), "event %d goes back in time", i)
		}
		assert.True(t, e.CreatedAt.After(start))
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	start := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	a := newGenerator(gofakeit.New(1), start).Events(20)
	b := newGenerator(gofakeit.New(1), start).Events(20)
	assert.Equal(t, a, b)
}
