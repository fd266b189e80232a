package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	"squeezemon/internal/infrastructure/storage"
)

// validCond 过滤 NULL 与类型不符的历史行，保证 LIMIT 只计算有效记录
const validCond = `typeof(mark_price) IN ('real','integer')
	AND typeof(index_price) IN ('real','integer')
	AND typeof(funding_rate) IN ('real','integer')
	AND typeof(open_interest) IN ('real','integer')
	AND typeof(ts_ms) = 'integer'`

const validRows = `symbol=? AND ` + validCond

type Repo struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(path string, log zerolog.Logger) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db, log: log.With().Str("component", "sqlite").Logger()}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  mark_price REAL,
  index_price REAL,
  basis REAL,
  basis_percent REAL,
  funding_rate REAL,
  open_interest REAL,
  long_short_ratio REAL,
  long_account REAL,
  short_account REAL,
  ts_ms INTEGER,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_id ON snapshots(symbol, id);
`)
	return err
}

// Append 单条 INSERT，原子写入
func (r *Repo) Append(ctx context.Context, s model.Snapshot) error {
	if err := storage.ValidateSymbol(s.Symbol); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(symbol, mark_price, index_price, basis, basis_percent, funding_rate,
			open_interest, long_short_ratio, long_account, short_account, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Symbol, s.MarkPrice, s.IndexPrice, s.Basis, s.BasisPercent, s.FundingRate,
		s.OpenInterest, s.LongShortRatio, s.LongAccountPct, s.ShortAccountPct, s.TimestampMs(), time.Now().UnixMilli())
	return err
}

// RecentWindow 按插入顺序返回最近 n 条
func (r *Repo) RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error) {
	if n <= 0 {
		return []model.Snapshot{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, mark_price, index_price, funding_rate, open_interest,
			long_short_ratio, long_account, short_account, ts_ms
		FROM snapshots WHERE `+validRows+`
		ORDER BY id DESC LIMIT ?`, symbol, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, skipped, err := storage.ScanSnapshots(rows, symbol)
	if err != nil {
		return nil, err
	}
	// 单连接：先释放游标再查询
	_ = rows.Close()
	filtered, err := r.corruptRows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	storage.ReportCorrupt(r.log, symbol, append(filtered, skipped...))

	storage.Reverse(out)
	return out, nil
}

// corruptRows 被 validCond 排除的行，仅用于告警
func (r *Repo) corruptRows(ctx context.Context, symbol string) ([]storage.CorruptRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM snapshots WHERE symbol=? AND NOT (`+validCond+`)
		ORDER BY id DESC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return storage.ScanCorruptIDs(rows, symbol)
}

func (r *Repo) Size(ctx context.Context, symbol string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM snapshots WHERE `+validRows, symbol).Scan(&n)
	return n, err
}

var _ port.SnapshotStore = (*Repo)(nil)
