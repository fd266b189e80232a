package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	"squeezemon/internal/infrastructure/storage"
)

type Repo struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(dsn string, log zerolog.Logger) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db, log: log.With().Str("component", "postgres").Logger()}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL,
  mark_price DOUBLE PRECISION,
  index_price DOUBLE PRECISION,
  basis DOUBLE PRECISION,
  basis_percent DOUBLE PRECISION,
  funding_rate DOUBLE PRECISION,
  open_interest DOUBLE PRECISION,
  long_short_ratio DOUBLE PRECISION,
  long_account DOUBLE PRECISION,
  short_account DOUBLE PRECISION,
  ts_ms BIGINT,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_id ON snapshots(symbol, id);
`)
	return err
}

// validCond 排除 NULL 与 NaN 的行
const validCond = `mark_price IS NOT NULL AND index_price IS NOT NULL
	AND funding_rate IS NOT NULL AND open_interest IS NOT NULL AND ts_ms IS NOT NULL
	AND mark_price <> 'NaN' AND open_interest <> 'NaN'`

const validRows = `symbol=$1 AND ` + validCond

func (r *Repo) Append(ctx context.Context, s model.Snapshot) error {
	if err := storage.ValidateSymbol(s.Symbol); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(symbol, mark_price, index_price, basis, basis_percent, funding_rate,
			open_interest, long_short_ratio, long_account, short_account, ts_ms, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.Symbol, s.MarkPrice, s.IndexPrice, s.Basis, s.BasisPercent, s.FundingRate,
		s.OpenInterest, s.LongShortRatio, s.LongAccountPct, s.ShortAccountPct, s.TimestampMs(), time.Now().UnixMilli())
	return err
}

func (r *Repo) RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error) {
	if n <= 0 {
		return []model.Snapshot{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, mark_price, index_price, funding_rate, open_interest,
			long_short_ratio, long_account, short_account, ts_ms
		FROM snapshots WHERE `+validRows+`
		ORDER BY id DESC LIMIT $2`, symbol, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, skipped, err := storage.ScanSnapshots(rows, symbol)
	if err != nil {
		return nil, err
	}
	filtered, err := r.corruptRows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	storage.ReportCorrupt(r.log, symbol, append(filtered, skipped...))
	storage.Reverse(out)
	return out, nil
}

func (r *Repo) corruptRows(ctx context.Context, symbol string) ([]storage.CorruptRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM snapshots WHERE symbol=$1 AND NOT (`+validCond+`)
		ORDER BY id DESC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return storage.ScanCorruptIDs(rows, symbol)
}

func (r *Repo) Size(ctx context.Context, symbol string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE `+validRows, symbol).Scan(&n)
	return n, err
}

var _ port.SnapshotStore = (*Repo)(nil)
