package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates_Valid(t *testing.T) {
	assert.True(t, Coordinates{Latitude: 90, Longitude: -180}.Valid())
	assert.False(t, Coordinates{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Coordinates{Latitude: 0, Longitude: 180.5}.Valid())
	assert.False(t, Coordinates{Latitude: math.NaN(), Longitude: 0}.Valid())
	assert.False(t, Coordinates{Latitude: 0, Longitude: math.Inf(1)}.Valid())
}
