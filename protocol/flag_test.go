package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flags = []Flag{Stop, Propagate, Generate}

func TestCombineTable(t *testing.T) {
	tests := []struct {
		a, b, want Flag
	}{
		{Stop, Stop, Stop},
		{Stop, Propagate, Stop},
		{Stop, Generate, Stop},
		{Propagate, Stop, Stop},
		{Propagate, Propagate, Propagate},
		{Propagate, Generate, Generate},
		{Generate, Stop, Generate},
		{Generate, Propagate, Generate},
		{Generate, Generate, Generate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Combine(tt.a, tt.b), "%v # %v", tt.a, tt.b)
	}
}

func TestCombineAlgebra(t *testing.T) {
	for _, x := range flags {
		assert.Equal(t, x, Combine(Propagate, x), "left identity")
		assert.Equal(t, x, Combine(x, Propagate), "right identity")
		assert.Equal(t, Generate, Combine(Generate, x))
		assert.Equal(t, Stop, Combine(Stop, x))
		for _, y := range flags {
			for _, z := range flags {
				assert.Equal(t, Combine(Combine(x, y), z), Combine(x, Combine(y, z)),
					"associativity %v %v %v", x, y, z)
			}
		}
	}
}

func TestInitFlag(t *testing.T) {
	assert.Equal(t, Stop, InitFlag(0, 0))
	assert.Equal(t, Propagate, InitFlag(0, 1))
	assert.Equal(t, Propagate, InitFlag(1, 0))
	assert.Equal(t, Generate, InitFlag(1, 1))
}

func TestParseCarryStrategy(t *testing.T) {
	c, err := ParseCarryStrategy("")
	require.NoError(t, err)
	assert.Equal(t, CarryShift, c)

	c, err = ParseCarryStrategy("direct")
	require.NoError(t, err)
	assert.Equal(t, CarryDirect, c)
	assert.Equal(t, "direct", c.String())

	_, err = ParseCarryStrategy("ripple")
	assert.Error(t, err)
}
