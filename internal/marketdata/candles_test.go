package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	mdapi "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// fakeBarGetter serves daily bars for a fixed set of trading days,
// regardless of the requested window.
type fakeBarGetter struct {
	days  []time.Time
	calls int
	err   error
}

func (f *fakeBarGetter) GetBars(_ string, req mdapi.GetBarsRequest) ([]mdapi.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var bars []mdapi.Bar
	for _, d := range f.days {
		if d.Before(req.Start) || d.After(req.End) {
			continue
		}
		bars = append(bars, mdapi.Bar{
			Timestamp: d,
			Open:      100, High: 101, Low: 99, Close: 100.5,
			Volume: 1000,
		})
	}
	return bars, nil
}

// weekdaysBack returns the count most recent weekdays ending today, oldest first.
func weekdaysBack(count int) []time.Time {
	var days []time.Time
	d := time.Now().UTC().Truncate(24 * time.Hour)
	for len(days) < count {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append([]time.Time{d}, days...)
		}
		d = d.AddDate(0, 0, -1)
	}
	return days
}

func TestLastDailyBars(t *testing.T) {
	fake := &fakeBarGetter{days: weekdaysBack(40)}
	c := newCandleClient(fake, "iex", 0)

	bars, err := c.LastDailyBars(context.Background(), "AAPL", 26)
	if err != nil {
		t.Fatalf("LastDailyBars: %v", err)
	}
	if len(bars) != 26 {
		t.Fatalf("LastDailyBars returned %d bars, want 26", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Timestamp.Before(bars[i].Timestamp) {
			t.Fatalf("bars not strictly ascending at %d: %v then %v", i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
	if bars[0].Symbol != "AAPL" {
		t.Errorf("bar Symbol = %q, want AAPL", bars[0].Symbol)
	}
}

func TestLastDailyBarsWidensWindow(t *testing.T) {
	// A 30-day window holds at most 22 trading days, so 30 bars require
	// stepping the window back at least once.
	fake := &fakeBarGetter{days: weekdaysBack(60)}
	c := newCandleClient(fake, "iex", 0)

	bars, err := c.LastDailyBars(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("LastDailyBars: %v", err)
	}
	if len(bars) != 30 {
		t.Fatalf("LastDailyBars returned %d bars, want 30", len(bars))
	}
	if fake.calls < 2 {
		t.Errorf("GetBars called %d times, want at least 2 (window walkback)", fake.calls)
	}
}

func TestLastDailyBarsShortHistory(t *testing.T) {
	// Fewer bars exist than requested; the walkback gives up and returns
	// what it found.
	fake := &fakeBarGetter{days: weekdaysBack(5)}
	c := newCandleClient(fake, "iex", 0)

	bars, err := c.LastDailyBars(context.Background(), "NEWCO", 26)
	if err != nil {
		t.Fatalf("LastDailyBars: %v", err)
	}
	if len(bars) != 5 {
		t.Errorf("LastDailyBars returned %d bars, want the 5 available", len(bars))
	}
}

func TestLastDailyBarsInvalidN(t *testing.T) {
	c := newCandleClient(&fakeBarGetter{}, "iex", 0)
	if _, err := c.LastDailyBars(context.Background(), "AAPL", 0); err == nil {
		t.Error("LastDailyBars(n=0): want error, got nil")
	}
}

func TestLastDailyBarsFetchError(t *testing.T) {
	wantErr := errors.New("boom")
	c := newCandleClient(&fakeBarGetter{err: wantErr}, "iex", 0)

	_, err := c.LastDailyBars(context.Background(), "AAPL", 5)
	if !errors.Is(err, wantErr) {
		t.Errorf("LastDailyBars: err = %v, want wrapped %v", err, wantErr)
	}
}

func TestLastNDedupes(t *testing.T) {
	days := weekdaysBack(3)
	fake := &fakeBarGetter{days: days}
	c := newCandleClient(fake, "iex", 0)

	// Overlapping windows in the walkback can return the same bar twice;
	// requesting more than exists exercises the dedup path.
	bars, err := c.LastDailyBars(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("LastDailyBars: %v", err)
	}
	seen := make(map[int64]bool)
	for _, b := range bars {
		ts := b.Timestamp.UnixMilli()
		if seen[ts] {
			t.Fatalf("duplicate bar timestamp %v", b.Timestamp)
		}
		seen[ts] = true
	}
}
