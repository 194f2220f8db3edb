package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, minutes)

	minutes, err = ParseClock(" 8:05 ")
	require.NoError(t, err)
	assert.Equal(t, 485, minutes)

	for _, bad := range []string{"", "9", "25:00", "10:60", "10:5", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "08:05", FormatClock(485))
	assert.Equal(t, "00:00", FormatClock(-3))
}

func TestSpanOverlap(t *testing.T) {
	a := Span{Day: 2, Start: 540, End: 600}
	assert.False(t, a.Overlaps(Span{Day: 2, Start: 600, End: 660}), "adjacent")
	assert.True(t, a.Overlaps(Span{Day: 2, Start: 599, End: 660}), "one minute")
	assert.False(t, a.Overlaps(Span{Day: 3, Start: 540, End: 600}), "other day")
	assert.True(t, a.Overlaps(Span{Day: 2, Start: 550, End: 560}), "contained")
}

func TestSessionSpanRejectsInvertedTimes(t *testing.T) {
	_, err := SessionSpan(session(2, "10:00", "09:00"))
	assert.Error(t, err)
	_, err = SessionSpan(session(8, "09:00", "10:00"))
	assert.Error(t, err)
}
