package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradekit/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// assetSchema is applied on open. IF NOT EXISTS keeps it idempotent across
// restarts against an existing database.
const assetSchema = `
CREATE TABLE IF NOT EXISTS assets (
	symbol       TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	exchange     TEXT NOT NULL DEFAULT '',
	class        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	tradable     INTEGER NOT NULL DEFAULT 0,
	shortable    INTEGER NOT NULL DEFAULT 0,
	fractionable INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_exchange ON assets(exchange);
`

// ReferenceStore is the asset reference cache, backed by a SQLite database.
// It holds the instrument master downloaded from the broker so symbol
// lookups work offline.
type ReferenceStore struct {
	db *sql.DB
}

// NewReferenceStore opens (or creates) a SQLite database at dbPath and
// applies the schema.
func NewReferenceStore(dbPath string) (*ReferenceStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening reference db: %w", err)
	}
	if _, err := db.Exec(assetSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying reference schema: %w", err)
	}
	return &ReferenceStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *ReferenceStore) Close() error {
	return s.db.Close()
}

// UpsertAssets inserts or replaces the given assets in a single transaction.
// Symbols are stored uppercase.
func (s *ReferenceStore) UpsertAssets(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (symbol, name, exchange, class, status, tradable, shortable, fractionable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			class = excluded.class,
			status = excluded.status,
			tradable = excluded.tradable,
			shortable = excluded.shortable,
			fractionable = excluded.fractionable,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range assets {
		if _, err := stmt.ExecContext(ctx,
			strings.ToUpper(a.Symbol), a.Name, a.Exchange, a.Class, a.Status,
			boolInt(a.Tradable), boolInt(a.Shortable), boolInt(a.Fractionable), now,
		); err != nil {
			return fmt.Errorf("upserting asset %s: %w", a.Symbol, err)
		}
	}
	return tx.Commit()
}

// GetAsset retrieves a single asset by symbol. Returns ErrNotFound when the
// symbol is not in the cache.
func (s *ReferenceStore) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, name, exchange, class, status, tradable, shortable, fractionable
		FROM assets WHERE symbol = ?`, strings.ToUpper(symbol))

	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByExchange returns all assets on the given exchange, sorted by symbol.
func (s *ReferenceStore) ListByExchange(ctx context.Context, exchange string) ([]domain.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, exchange, class, status, tradable, shortable, fractionable
		FROM assets WHERE exchange = ? ORDER BY symbol`, exchange)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// Count returns the number of cached assets.
func (s *ReferenceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n)
	return n, err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*domain.Asset, error) {
	var a domain.Asset
	var tradable, shortable, fractionable int
	if err := row.Scan(&a.Symbol, &a.Name, &a.Exchange, &a.Class, &a.Status,
		&tradable, &shortable, &fractionable); err != nil {
		return nil, err
	}
	a.Tradable = tradable != 0
	a.Shortable = shortable != 0
	a.Fractionable = fractionable != 0
	return &a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
