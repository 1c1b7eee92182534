package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradekit/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ TickStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and TickStore using Parquet files on disk.
//
// Layout:
//
//	<DataDir>/bars/<interval>/<SYMBOL>/<YYYY>.parquet
//	<DataDir>/ticks/<SYMBOL>/<YYYY-MM-DD>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// TickRecord is the Parquet schema for trade-print data.
type TickRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
	Size      int64   `parquet:"size"`
	Exchange  string  `parquet:"exchange"`
	ID        int64   `parquet:"id"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by interval, symbol,
// and year. Bars already on disk for the same symbol and year are merged in,
// with incoming bars replacing existing ones at the same timestamp.
func (s *ParquetStore) WriteBars(_ context.Context, interval domain.Interval, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, year: b.Timestamp.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     b.Symbol,
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(interval, k.symbol, k.year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data for the given symbol and interval within [start, end].
func (s *ParquetStore) ReadBars(_ context.Context, interval domain.Interval, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(interval, symbol, year)

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if inRange(ts, start, end) {
				bars = append(bars, domain.Bar{
					Symbol:     r.Symbol,
					Timestamp:  ts,
					Open:       r.Open,
					High:       r.High,
					Low:        r.Low,
					Close:      r.Close,
					Volume:     r.Volume,
					TradeCount: r.TradeCount,
					VWAP:       r.VWAP,
				})
			}
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data at the given interval.
func (s *ParquetStore) ListSymbols(_ context.Context, interval domain.Interval) ([]string, error) {
	dir := filepath.Join(s.DataDir, "bars", string(interval))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// TickStore implementation
// ---------------------------------------------------------------------------

// WriteTicks writes trade prints to Parquet files organized by symbol and date.
func (s *ParquetStore) WriteTicks(_ context.Context, ticks []domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		symbol string
		date   string // YYYY-MM-DD
	}
	groups := make(map[key][]TickRecord)
	for _, tk := range ticks {
		k := key{symbol: tk.Symbol, date: tk.Timestamp.UTC().Format("2006-01-02")}
		groups[k] = append(groups[k], TickRecord{
			Symbol:    tk.Symbol,
			Timestamp: tk.Timestamp.UnixMilli(),
			Price:     tk.Price,
			Size:      tk.Size,
			Exchange:  tk.Exchange,
			ID:        tk.ID,
		})
	}

	for k, records := range groups {
		path := s.tickPath(k.symbol, k.date)

		existing, _ := readParquetFile[TickRecord](path)
		merged := mergeTickRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing ticks for %s/%s: %w", k.symbol, k.date, err)
		}
	}
	return nil
}

// ReadTicks reads trade prints for the given symbol within [start, end].
func (s *ParquetStore) ReadTicks(_ context.Context, symbol string, start, end time.Time) ([]domain.Tick, error) {
	var ticks []domain.Tick
	startDay := time.Date(start.UTC().Year(), start.UTC().Month(), start.UTC().Day(), 0, 0, 0, 0, time.UTC)
	for d := startDay; !d.After(end); d = d.AddDate(0, 0, 1) {
		path := s.tickPath(symbol, d.Format("2006-01-02"))
		records, err := readParquetFile[TickRecord](path)
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if inRange(ts, start, end) {
				ticks = append(ticks, domain.Tick{
					Symbol:    r.Symbol,
					Timestamp: ts,
					Price:     r.Price,
					Size:      r.Size,
					Exchange:  r.Exchange,
					ID:        r.ID,
				})
			}
		}
	}
	return ticks, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
func (s *ParquetStore) barPath(interval domain.Interval, symbol string, year int) string {
	return filepath.Join(s.DataDir, "bars", string(interval), strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// tickPath returns the filesystem path for a tick Parquet file.
func (s *ParquetStore) tickPath(symbol, date string) string {
	return filepath.Join(s.DataDir, "ticks", strings.ToUpper(symbol), date+".parquet")
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeTickRecords deduplicates tick records by (symbol, id), preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeTickRecords(existing, incoming []TickRecord) []TickRecord {
	type key struct {
		symbol string
		id     int64
	}
	seen := make(map[key]TickRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.ID}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.ID}] = r
	}

	merged := make([]TickRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
