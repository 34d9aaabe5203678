package stats

import (
	"math"
	"time"
)

// DefaultWindows are the trailing windows, in days, shared by the
// claims, invoices, clients and users dashboards.
var DefaultWindows = []int{7, 30, 90}

// Window holds the counts for one trailing window and the window twice
// its size immediately before it.
type Window struct {
	Days     int     `json:"days"`
	Current  int     `json:"current"`
	Previous int     `json:"previous"`
	Percent  float64 `json:"percent"`
}

// CalcPercent computes period-over-period change. A zero previous
// period reports 100 when the current period has activity and 0 when
// it does not, so empty history never divides by zero.
func CalcPercent(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// WindowCounts buckets timestamps into trailing windows against now.
// For a window of N days the current bucket covers ages up to N days
// and the previous bucket covers ages in (N, 2N]. Zero timestamps are
// skipped.
func WindowCounts(times []time.Time, now time.Time, windows []int) []Window {
	if len(windows) == 0 {
		windows = DefaultWindows
	}

	out := make([]Window, len(windows))
	for i, days := range windows {
		out[i] = Window{Days: days}
	}

	for _, t := range times {
		if t.IsZero() {
			continue
		}
		age := ageInDays(now, t)
		for i, days := range windows {
			if age <= days {
				out[i].Current++
			} else if age <= 2*days {
				out[i].Previous++
			}
		}
	}

	for i := range out {
		out[i].Percent = CalcPercent(out[i].Current, out[i].Previous)
	}

	return out
}

func ageInDays(now, t time.Time) int {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// Range is a half-open [From, To) interval. A zero To means open-ended.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Periods holds the calendar ranges the clients/users dashboards
// compare: today vs yesterday, trailing week vs the week before, this
// calendar month vs last month.
type Periods struct {
	Today     Range
	Yesterday Range
	ThisWeek  Range
	LastWeek  Range
	ThisMonth Range
	LastMonth Range
}

// PeriodsOf derives the comparison ranges from a reference time.
func PeriodsOf(now time.Time) Periods {
	year, month, day := now.Date()
	todayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	weekStart := todayStart.AddDate(0, 0, -7)
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	return Periods{
		Today:     Range{From: todayStart},
		Yesterday: Range{From: todayStart.AddDate(0, 0, -1), To: todayStart},
		ThisWeek:  Range{From: weekStart},
		LastWeek:  Range{From: todayStart.AddDate(0, 0, -14), To: weekStart},
		ThisMonth: Range{From: monthStart},
		LastMonth: Range{From: lastMonthStart, To: monthStart},
	}
}

// PeriodChange pairs a current count with the preceding period.
type PeriodChange struct {
	Count  int     `json:"count"`
	Prev   int     `json:"prev"`
	Change float64 `json:"change"`
}

// NewPeriodChange computes the change between two period counts.
func NewPeriodChange(count, prev int) PeriodChange {
	return PeriodChange{Count: count, Prev: prev, Change: CalcPercent(count, prev)}
}

// ActivityEntry is one login observation for the monthly chart.
type ActivityEntry struct {
	LastLogin time.Time
	Active    bool
}

// MonthlyActivity is one point of the year-to-date activity series.
type MonthlyActivity struct {
	Month    string `json:"month"`
	Active   int    `json:"active"`
	Inactive int    `json:"inactive"`
}

var monthLabels = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthlySeries groups login activity per calendar month of the given
// year. Every month is present in the result, zeroed when empty.
func MonthlySeries(entries []ActivityEntry, year int) []MonthlyActivity {
	out := make([]MonthlyActivity, 12)
	for i := range out {
		out[i].Month = monthLabels[i]
	}

	for _, entry := range entries {
		if entry.LastLogin.IsZero() || entry.LastLogin.Year() != year {
			continue
		}
		idx := int(entry.LastLogin.Month()) - 1
		if entry.Active {
			out[idx].Active++
		} else {
			out[idx].Inactive++
		}
	}

	return out
}
