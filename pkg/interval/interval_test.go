package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlapsExcludesTouchingIntervals(t *testing.T) {
	assert.False(t, Overlaps(0, 60, 60, 120))
	assert.True(t, Overlaps(0, 60, 59, 120))
}

func TestOverlapsSymmetric(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"disjoint", 0, 30, 60, 90, false},
		{"contained", 0, 120, 30, 60, true},
		{"partial", 540, 600, 570, 630, true},
		{"identical", 540, 600, 540, 600, true},
		{"touching", 540, 600, 600, 660, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
		})
	}
}

func TestParseClock(t *testing.T) {
	min, err := ParseClock("09:00")
	require.NoError(t, err)
	assert.Equal(t, 540, min)

	min, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 1439, min)

	for _, raw := range []string{"", "9", "24:00", "12:60", "ab:cd"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, raw := range []string{"00:00", "09:30", "13:05", "23:59"} {
		min, err := ParseClock(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, FormatClock(min))
	}
}
