package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_Symmetric(t *testing.T) {
	t.Parallel()
	points := []Location{
		{0, 0},
		{0, 0.005},
		{59.3293, 18.0686},
		{-33.8688, 151.2093},
		{90, 0},
		{-90, 180},
		{400, -720},
		{1e308, 0},
		{-1e308, 1e308},
	}
	for _, a := range points {
		for _, b := range points {
			assert.Equal(t, Haversine(a, b, DefaultEarthRadiusKm), Haversine(b, a, DefaultEarthRadiusKm), "%v <-> %v", a, b)
		}
		assert.Zero(t, Haversine(a, a, DefaultEarthRadiusKm), "%v to itself", a)
	}
}

func TestHaversine_ExtremeInputIsFinite(t *testing.T) {
	t.Parallel()
	huge := []Location{
		{1e308, 0},
		{-1e308, 1e308},
		{math.MaxFloat64, -math.MaxFloat64},
		{math.Inf(1), math.NaN()},
	}
	for _, a := range huge {
		for _, b := range []Location{{0, 0}, {59.3293, 18.0686}, {1e308, 0}} {
			d := Haversine(a, b, DefaultEarthRadiusKm)
			assert.False(t, math.IsNaN(d), "%v -> %v", a, b)
			assert.False(t, math.IsInf(d, 0), "%v -> %v", a, b)
			assert.LessOrEqual(t, d, math.Pi*DefaultEarthRadiusKm+1e-9)
		}
	}
}

func TestHaversine_KnownDistances(t *testing.T) {
	t.Parallel()
	a := Location{Latitude: 0, Longitude: 0}
	b := Location{Latitude: 0, Longitude: 0.005}
	c := Location{Latitude: 0, Longitude: 0.02}

	assert.InDelta(t, 0.556, Haversine(a, b, DefaultEarthRadiusKm), 0.001)
	assert.InDelta(t, 2.224, Haversine(a, c, DefaultEarthRadiusKm), 0.001)
	assert.InDelta(t, 1.668, Haversine(b, c, DefaultEarthRadiusKm), 0.001)

	// Stockholm to Gothenburg, roughly 398 km.
	sthlm := Location{Latitude: 59.3293, Longitude: 18.0686}
	gbg := Location{Latitude: 57.7089, Longitude: 11.9746}
	assert.InDelta(t, 398, Haversine(sthlm, gbg, DefaultEarthRadiusKm), 2)
}

func TestHaversine_ScalesWithEarthRadius(t *testing.T) {
	t.Parallel()
	a := Location{0, 0}
	b := Location{0, 1}
	d1 := Haversine(a, b, DefaultEarthRadiusKm)
	d2 := Haversine(a, b, 2*DefaultEarthRadiusKm)
	assert.InDelta(t, 2*d1, d2, 1e-9)
}

func TestHaversine_OutOfRangeIsFinite(t *testing.T) {
	t.Parallel()
	d := Haversine(Location{1000, -5000}, Location{-1000, 5000}, DefaultEarthRadiusKm)
	assert.False(t, math.IsNaN(d))
	assert.False(t, math.IsInf(d, 0))
	assert.LessOrEqual(t, d, math.Pi*DefaultEarthRadiusKm+1e-9)
}
