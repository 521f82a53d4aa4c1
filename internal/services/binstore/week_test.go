package binstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekOf(t *testing.T) {
	tests := []struct {
		date string
		year int
		week int
	}{
		{"2020-01-01", 2020, 1},  // Wednesday, in W1
		{"2021-01-01", 2020, 53}, // Friday, still the previous ISO year
		{"2024-12-30", 2025, 1},  // Monday of 2025-W01
		{"2025-01-06", 2025, 2},
		{"2016-01-04", 2016, 1}, // January 4 is always in week 1
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			date, err := time.Parse("2006-01-02", tt.date)
			require.NoError(t, err)
			w := WeekOf(date)
			assert.Equal(t, tt.year, w.Year)
			assert.Equal(t, tt.week, w.Week)
		})
	}
}

func TestWeekString(t *testing.T) {
	assert.Equal(t, "2025-W03", Week{Year: 2025, Week: 3}.String())
	assert.Equal(t, "2020-W53", Week{Year: 2020, Week: 53}.String())
}

func TestParseWeekID(t *testing.T) {
	w, err := ParseWeekID("2025-W03")
	require.NoError(t, err)
	assert.Equal(t, Week{Year: 2025, Week: 3}, w)

	_, err = ParseWeekID("garbage")
	assert.Error(t, err)

	_, err = ParseWeekID("2025-W99")
	assert.Error(t, err)
}
