package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters(t *testing.T) {
	// Zurich HB to Bern HB, roughly 95 km.
	d := HaversineMeters(47.378177, 8.540192, 46.948832, 7.439136)
	assert.InDelta(t, 95000, d, 2000)
}

func TestHaversineZeroDistance(t *testing.T) {
	assert.Zero(t, HaversineMeters(47.0, 8.0, 47.0, 8.0))
}

func TestHaversineSmallDistance(t *testing.T) {
	// ~11.1 m per 0.0001 degrees of latitude.
	d := HaversineMeters(47.0, 8.0, 47.0001, 8.0)
	assert.InDelta(t, 11.1, d, 0.2)
}
