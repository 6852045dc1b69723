package util

import (
	"time"
)

// TradingCalendar answers business-day questions. A business day is any day
// whose ISO weekday is Monday through Friday; exchange holidays are not
// modelled.
type TradingCalendar struct {
	loc *time.Location
}

// NewTradingCalendar creates a TradingCalendar that interprets dates in loc.
// A nil loc means UTC.
func NewTradingCalendar(loc *time.Location) *TradingCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &TradingCalendar{loc: loc}
}

// IsTradingDay reports whether t falls on an ISO weekday in [1,5].
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := isoWeekday(t.In(tc.loc))
	return wd >= 1 && wd <= 5
}

// BusinessDaysBetween counts trading days in the half-open range (from, to].
// It returns 0 when to is not after from.
func (tc *TradingCalendar) BusinessDaysBetween(from, to time.Time) int {
	start := tc.truncate(from)
	end := tc.truncate(to)
	n := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if tc.IsTradingDay(d) {
			n++
		}
	}
	return n
}

// NextBusinessDays returns from (truncated to its date) followed by the next
// n trading days after it. The first element is always the anchor date so
// that it can carry the last known price.
func (tc *TradingCalendar) NextBusinessDays(from time.Time, n int) []time.Time {
	d := tc.truncate(from)
	dates := make([]time.Time, 0, n+1)
	dates = append(dates, d)
	for len(dates) < n+1 {
		d = d.AddDate(0, 0, 1)
		if tc.IsTradingDay(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func (tc *TradingCalendar) truncate(t time.Time) time.Time {
	t = t.In(tc.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tc.loc)
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1 ...
// Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
