package storage

import (
	"database/sql"
	"time"

	"squeezemon/internal/domain/model"
)

// Scanner 与 *sql.Rows 兼容
type Scanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanSnapshots 列顺序: id, symbol, mark_price, index_price, funding_rate, open_interest,
// long_short_ratio, long_account, short_account, ts_ms
// NULL、类型不符或非有限值的行视为损坏，跳过
func ScanSnapshots(rows Scanner, symbol string) ([]model.Snapshot, []CorruptRecord, error) {
	out := make([]model.Snapshot, 0, 16)
	var skipped []CorruptRecord
	for rows.Next() {
		var (
			id                           int64
			sym                          string
			mark, index, funding, oi     sql.NullFloat64
			lsRatio, longAcct, shortAcct sql.NullFloat64
			ts                           sql.NullInt64
		)
		if err := rows.Scan(&id, &sym, &mark, &index, &funding, &oi, &lsRatio, &longAcct, &shortAcct, &ts); err != nil {
			skipped = append(skipped, CorruptRecord{Symbol: symbol, Reason: err.Error()})
			continue
		}
		if !mark.Valid || !index.Valid || !funding.Valid || !oi.Valid || !ts.Valid {
			skipped = append(skipped, CorruptRecord{Symbol: symbol, Position: int(id), Reason: "null required column"})
			continue
		}
		if !Finite(mark.Float64, index.Float64, funding.Float64, oi.Float64) {
			skipped = append(skipped, CorruptRecord{Symbol: symbol, Position: int(id), Reason: "non-finite value"})
			continue
		}

		pos := model.NeutralPositioning()
		if lsRatio.Valid && Finite(lsRatio.Float64) {
			pos.LongShortRatio = lsRatio.Float64
		}
		if longAcct.Valid && Finite(longAcct.Float64) {
			pos.LongAccountPct = longAcct.Float64
		}
		if shortAcct.Valid && Finite(shortAcct.Float64) {
			pos.ShortAccountPct = shortAcct.Float64
		}
		out = append(out, model.NewSnapshot(sym, mark.Float64, index.Float64, funding.Float64, oi.Float64, pos, time.UnixMilli(ts.Int64)))
	}
	return out, skipped, rows.Err()
}

// ScanCorruptIDs 读取被 SQL 条件过滤掉的行 id，转为损坏记录
func ScanCorruptIDs(rows Scanner, symbol string) ([]CorruptRecord, error) {
	var out []CorruptRecord
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, CorruptRecord{Symbol: symbol, Position: int(id), Reason: "malformed column"})
	}
	return out, rows.Err()
}

// Reverse DESC 查询结果转为时间顺序
func Reverse(xs []model.Snapshot) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
