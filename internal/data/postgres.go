package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"grid-backtest/internal/model"

	"github.com/lib/pq"
)

// DefaultCandleTable is the table PostgresSupplier reads from. Expected
// columns: source_id text, open_time bigint (ms), open, high, low, close,
// volume, quote_volume numeric.
const DefaultCandleTable = "candles"

// PostgresSupplier reads candles from a Postgres table.
type PostgresSupplier struct {
	db    *sql.DB
	table string
}

// OpenPostgres opens a connection pool using the lib/pq driver and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresSupplier(db *sql.DB, table string) *PostgresSupplier {
	if table == "" {
		table = DefaultCandleTable
	}
	return &PostgresSupplier{db: db, table: table}
}

func (s *PostgresSupplier) Fetch(ctx context.Context, sourceID string, start, end time.Time) ([]model.Candle, error) {
	query := fmt.Sprintf(`
		SELECT open_time, open, high, low, close, volume, quote_volume
		FROM %s
		WHERE source_id = $1 AND open_time >= $2 AND open_time < $3
		ORDER BY open_time`, pq.QuoteIdentifier(s.table))

	rows, err := s.db.QueryContext(ctx, query, sourceID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query candles for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		err := rows.Scan(
			&c.OpenTime,
			&c.Open,
			&c.High,
			&c.Low,
			&c.Close,
			&c.Volume,
			&c.QuoteVolume,
		)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return candles, nil
}

func (s *PostgresSupplier) Sources(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT source_id FROM %s ORDER BY source_id`, pq.QuoteIdentifier(s.table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
