package generator

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caliseed/internal/memstore"
	"caliseed/internal/types"
)

var aragon = []string{"Zaragoza", "Huesca", "Teruel"}

func decimals(v float64, n int) bool {
	p := math.Pow(10, float64(n))
	return math.Abs(v*p-math.Round(v*p)) < 1e-6
}

func TestEvent_WithinRanges(t *testing.T) {
	g := New(aragon, 42)

	for range 500 {
		e := g.Event()

		assert.Contains(t, aragon, e.Location)
		assert.Contains(t, EventTypes, e.EventType)
		assert.Equal(t, types.SourceSynthetic, e.Source)
		assert.False(t, e.AlertTriggered)

		require.NotNil(t, e.SoilMoisture)
		assert.InDelta(t, 46.5, *e.SoilMoisture, 43.5)
		assert.True(t, decimals(*e.SoilMoisture, 2))

		assert.InDelta(t, 20, *e.TemperatureC, 25)
		assert.True(t, decimals(*e.TemperatureC, 1))
		assert.InDelta(t, 55, *e.HumidityPct, 45)
		assert.InDelta(t, 100, *e.RainfallMM, 100)
		assert.InDelta(t, 65, *e.WindSpeedKmh, 65)

		require.NotNil(t, e.HailDetected)
		require.NotNil(t, e.AnimalAlert)
		require.NotNil(t, e.FloodRiskLevel)
		assert.True(t, e.FloodRiskLevel.Valid())
	}
}

func TestEvent_SeedIsRepeatable(t *testing.T) {
	a, b := New(aragon, 7), New(aragon, 7)
	for range 20 {
		ea, eb := a.Event(), b.Event()
		assert.Equal(t, ea.Location, eb.Location)
		assert.Equal(t, ea.EventType, eb.EventType)
		assert.Equal(t, *ea.TemperatureC, *eb.TemperatureC)
		assert.Equal(t, *ea.FloodRiskLevel, *eb.FloodRiskLevel)
	}
}

func TestEvent_CoversCategories(t *testing.T) {
	g := New(aragon, 3)
	seenTypes := map[string]bool{}
	seenLocs := map[string]bool{}
	for range 300 {
		e := g.Event()
		seenTypes[e.EventType] = true
		seenLocs[e.Location] = true
	}
	assert.Len(t, seenTypes, len(EventTypes))
	assert.Len(t, seenLocs, len(aragon))
}

func TestSeed_InsertsEvents(t *testing.T) {
	store := memstore.New()

	events, err := New(aragon, 1).Seed(context.Background(), store.Events(), 10)

	require.NoError(t, err)
	assert.Len(t, events, 10)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
	}
	n, err := store.Events().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

type flakyInserter struct{ left int }

func (f *flakyInserter) Insert(_ context.Context, e *types.Event) error {
	if f.left == 0 {
		return errors.New("disk full")
	}
	f.left--
	e.ID = "x"
	return nil
}

func TestSeed_StopsOnError(t *testing.T) {
	events, err := New(aragon, 1).Seed(context.Background(), &flakyInserter{left: 3}, 10)

	require.Error(t, err)
	assert.Len(t, events, 3)
	assert.Contains(t, err.Error(), "insert event 4 of 10")
}

func TestNew_CopiesLocations(t *testing.T) {
	locs := slices.Clone(aragon)
	g := New(locs, 5)
	locs[0], locs[1], locs[2] = "a", "b", "c"

	assert.Contains(t, aragon, g.Event().Location)
}
