package util

import "time"

// TradingCalendar answers session-time questions for US equity markets
// (NYSE/Nasdaq regular hours, 9:30-16:00 Eastern, Monday-Friday). Exchange
// holidays are not modelled; callers that walk back over history widen their
// request window instead, so a holiday simply yields an empty day.
type TradingCalendar struct {
	loc *time.Location
}

// NewTradingCalendar creates a calendar pinned to the US Eastern time zone.
func NewTradingCalendar() *TradingCalendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// The tz database ships with the Go toolchain; EST is a usable
		// fallback when the host has no zoneinfo at all.
		loc = time.FixedZone("EST", -5*3600)
	}
	return &TradingCalendar{loc: loc}
}

// IsTradingDay reports whether t falls on a weekday in exchange time.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := t.In(tc.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// SessionOpen returns 9:30 exchange time on t's date.
func (tc *TradingCalendar) SessionOpen(t time.Time) time.Time {
	et := t.In(tc.loc)
	return time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, tc.loc)
}

// SessionClose returns 16:00 exchange time on t's date.
func (tc *TradingCalendar) SessionClose(t time.Time) time.Time {
	et := t.In(tc.loc)
	return time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, tc.loc)
}

// IsMarketOpen reports whether t is inside regular trading hours.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	if !tc.IsTradingDay(t) {
		return false
	}
	et := t.In(tc.loc)
	open := tc.SessionOpen(et)
	close := tc.SessionClose(et)
	return !et.Before(open) && et.Before(close)
}

// PrevTradingDay returns the most recent trading day strictly before t's
// date.
func (tc *TradingCalendar) PrevTradingDay(t time.Time) time.Time {
	d := t.In(tc.loc).AddDate(0, 0, -1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, tc.loc)
}

// NextTradingDay returns the first trading day strictly after t's date.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := t.In(tc.loc).AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, tc.loc)
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	et := t.In(tc.loc)
	if tc.IsTradingDay(et) && et.Before(tc.SessionOpen(et)) {
		return tc.SessionOpen(et)
	}
	return tc.SessionOpen(tc.NextTradingDay(et))
}

// NextClose returns the next session close at or after t.
func (tc *TradingCalendar) NextClose(t time.Time) time.Time {
	et := t.In(tc.loc)
	if tc.IsTradingDay(et) && et.Before(tc.SessionClose(et)) {
		return tc.SessionClose(et)
	}
	return tc.SessionClose(tc.NextTradingDay(et))
}
