package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockRangeOverlaps(t *testing.T) {
	first, err := rangeFrom("10:00", 30)
	require.NoError(t, err)
	overlapping, err := rangeFrom("10:15", 30)
	require.NoError(t, err)
	adjacent, err := rangeFrom("10:30", 30)
	require.NoError(t, err)

	assert.True(t, first.overlaps(overlapping))
	assert.True(t, overlapping.overlaps(first))
	assert.False(t, first.overlaps(adjacent))
	assert.False(t, adjacent.overlaps(first))
}

func TestParseClock(t *testing.T) {
	minutes, err := parseClock("09:45")
	require.NoError(t, err)
	assert.Equal(t, 585, minutes)

	minutes, err = parseClock("14:00:00")
	require.NoError(t, err)
	assert.Equal(t, 840, minutes)

	for _, bad := range []string{"", "9", "24:00", "10:60", "10:00:30", "ab:cd"} {
		_, err := parseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitWindowDropsRemainder(t *testing.T) {
	window, err := rangeBetween("09:00", "10:50")
	require.NoError(t, err)

	slots := splitWindow(window, 30)
	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", formatClock(slots[0].start))
	assert.Equal(t, "10:30", formatClock(slots[2].end))
	assert.Nil(t, splitWindow(window, 0))
}

func TestOverlapsAny(t *testing.T) {
	busy := []clockRange{{start: 600, end: 630}, {start: 700, end: 720}}
	assert.True(t, overlapsAny(clockRange{start: 620, end: 650}, busy))
	assert.False(t, overlapsAny(clockRange{start: 630, end: 660}, busy))
}
