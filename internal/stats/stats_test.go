package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalcPercent(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		previous int
		want     float64
	}{
		{"both zero", 0, 0, 0},
		{"growth from nothing", 5, 0, 100},
		{"doubled", 10, 5, 100},
		{"halved", 5, 10, -50},
		{"unchanged", 4, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalcPercent(tt.current, tt.previous))
		})
	}
}

func TestWindowCounts(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	times := []time.Time{
		now.AddDate(0, 0, -2),  // inside 7
		now.AddDate(0, 0, -10), // previous 7, inside 30
		now.AddDate(0, 0, -45), // previous 30, inside 90
		now.AddDate(0, 0, -70), // inside 90
		now.AddDate(0, 0, -120), // previous 90
		{},                     // skipped
	}

	windows := WindowCounts(times, now, DefaultWindows)

	assert.Len(t, windows, 3)

	assert.Equal(t, 7, windows[0].Days)
	assert.Equal(t, 1, windows[0].Current)
	assert.Equal(t, 1, windows[0].Previous)
	assert.Equal(t, float64(0), windows[0].Percent)

	assert.Equal(t, 30, windows[1].Days)
	assert.Equal(t, 2, windows[1].Current)
	assert.Equal(t, 1, windows[1].Previous)
	assert.Equal(t, float64(100), windows[1].Percent)

	assert.Equal(t, 90, windows[2].Days)
	assert.Equal(t, 4, windows[2].Current)
	assert.Equal(t, 1, windows[2].Previous)
}

func TestWindowCountsEdges(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	// Exactly 7 days old lands in the current bucket, 8 days in the
	// previous one, 14 days still in the previous one.
	windows := WindowCounts([]time.Time{
		now.AddDate(0, 0, -7),
		now.AddDate(0, 0, -8),
		now.AddDate(0, 0, -14),
		now.AddDate(0, 0, -15),
	}, now, []int{7})

	assert.Equal(t, 1, windows[0].Current)
	assert.Equal(t, 2, windows[0].Previous)
}

func TestPeriodsOf(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)
	p := PeriodsOf(now)

	assert.True(t, p.Today.Contains(now))
	assert.False(t, p.Today.Contains(now.AddDate(0, 0, -1)))

	assert.True(t, p.Yesterday.Contains(now.AddDate(0, 0, -1)))
	assert.False(t, p.Yesterday.Contains(now))

	assert.True(t, p.ThisWeek.Contains(now.AddDate(0, 0, -6)))
	assert.True(t, p.LastWeek.Contains(now.AddDate(0, 0, -10)))
	assert.False(t, p.LastWeek.Contains(now.AddDate(0, 0, -3)))

	assert.True(t, p.ThisMonth.Contains(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.LastMonth.Contains(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.LastMonth.Contains(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMonthlySeries(t *testing.T) {
	entries := []ActivityEntry{
		{LastLogin: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Active: true},
		{LastLogin: time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC), Active: false},
		{LastLogin: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), Active: true},
		{LastLogin: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Active: true}, // wrong year
		{Active: true}, // zero login
	}

	series := MonthlySeries(entries, 2025)

	assert.Len(t, series, 12)
	assert.Equal(t, "Jan", series[0].Month)
	assert.Equal(t, 1, series[0].Active)
	assert.Equal(t, 1, series[0].Inactive)
	assert.Equal(t, 1, series[2].Active)
	assert.Equal(t, 0, series[2].Inactive)
	assert.Equal(t, 0, series[11].Active)
}
