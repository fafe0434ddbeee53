package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLess(t *testing.T) {
	assert.True(t, Less(1, 2))
	assert.False(t, Less(2, 1))
	assert.False(t, Less(2, 2))
	assert.True(t, Less(255, Padding))
	assert.False(t, Less(Padding, 0))
	assert.False(t, Less(Padding, Padding))
}

func TestPick(t *testing.T) {
	tests := []struct {
		name                string
		left, right         int
		winner, nLeft, nRgt int
	}{
		{"both empty retires both", Empty, Empty, Empty, Quit, Quit},
		{"left only", 4, Empty, 4, Empty, Empty},
		{"right only", Empty, 4, 4, Empty, Empty},
		{"smaller left", 1, 4, 1, Empty, 4},
		{"smaller right", 4, 1, 1, 4, Empty},
		{"tie goes left", 3, 3, 3, Empty, 3},
		{"padding loses to a value", Padding, 9, 9, Padding, Empty},
		{"padding ties go left", Padding, Padding, Padding, Empty, Padding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, l, r := pick(tt.left, tt.right)
			assert.Equal(t, tt.winner, winner)
			assert.Equal(t, tt.nLeft, l)
			assert.Equal(t, tt.nRgt, r)
		})
	}
}
