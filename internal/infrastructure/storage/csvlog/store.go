package csvlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	"squeezemon/internal/infrastructure/storage"
)

const timestampLayout = "2006-01-02 15:04:05"

// Columns 与历史 CSV 文件保持一致
var Columns = []string{
	"symbol",
	"mark_price",
	"index_price",
	"basis",
	"basis_percent",
	"last_funding_rate",
	"timestamp",
	"timestamp_ms",
	"oi",
	"long_short_ratio",
	"long_account",
	"short_account",
}

var required = []string{"symbol", "mark_price", "index_price", "last_funding_rate", "oi"}

// Store 每个合约一个 <SYMBOL>.csv 的只追加日志
type Store struct {
	dir  string
	sync bool
	log  zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per symbol, never across symbols
}

// New 创建目录并返回存储；fsync 控制每次追加后是否刷盘
func New(dir string, fsync bool, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dir:   dir,
		sync:  fsync,
		log:   log.With().Str("component", "csvlog").Logger(),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) Close() error { return nil }

// Dir 数据目录
func (s *Store) Dir() string { return s.dir }

func (s *Store) lock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

func (s *Store) path(symbol string) (string, error) {
	if err := storage.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, symbol+".csv"), nil
}

// Append 追加一条记录；新文件先写表头。表头与记录在一次 write 中写入。
func (s *Store) Append(ctx context.Context, snap model.Snapshot) error {
	p, err := s.path(snap.Symbol)
	if err != nil {
		return err
	}

	l := s.lock(snap.Symbol)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}

	var sb strings.Builder
	if st.Size() == 0 {
		sb.WriteString(strings.Join(Columns, ","))
		sb.WriteByte('\n')
	}
	sb.WriteString(encode(snap))
	sb.WriteByte('\n')

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("append %s: %w", p, err)
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", p, err)
		}
	}
	return nil
}

// RecentWindow 最近 n 条，按时间顺序
func (s *Store) RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error) {
	if n <= 0 {
		return []model.Snapshot{}, nil
	}
	all, err := s.readAll(symbol)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]model.Snapshot, len(all))
	copy(out, all)
	return out, nil
}

// Size 有效记录数（不含表头与损坏行）
func (s *Store) Size(ctx context.Context, symbol string) (int, error) {
	all, err := s.readAll(symbol)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) readAll(symbol string) ([]model.Snapshot, error) {
	p, err := s.path(symbol)
	if err != nil {
		return nil, err
	}

	l := s.lock(symbol)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	cols := columnIndex(Columns)
	out := make([]model.Snapshot, 0, 64)
	var skipped []storage.CorruptRecord

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		fields := strings.Split(raw, ",")
		if strings.TrimSpace(fields[0]) == "symbol" {
			cols = columnIndex(fields)
			continue
		}
		snap, reason := decode(fields, cols)
		if reason != "" {
			skipped = append(skipped, storage.CorruptRecord{Symbol: symbol, Position: line, Reason: reason})
			continue
		}
		if snap.Symbol != symbol {
			skipped = append(skipped, storage.CorruptRecord{Symbol: symbol, Position: line, Reason: "symbol mismatch " + snap.Symbol})
			continue
		}
		out = append(out, snap)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	storage.ReportCorrupt(s.log, symbol, skipped)
	return out, nil
}

func encode(s model.Snapshot) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return strings.Join([]string{
		s.Symbol,
		f(s.MarkPrice),
		f(s.IndexPrice),
		f(s.Basis),
		f(s.BasisPercent),
		f(s.FundingRate),
		s.CapturedAt.Format(timestampLayout),
		strconv.FormatInt(s.TimestampMs(), 10),
		f(s.OpenInterest),
		f(s.LongShortRatio),
		f(s.LongAccountPct),
		f(s.ShortAccountPct),
	}, ",")
}

func columnIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.TrimSpace(h)] = i
	}
	return m
}

// decode 返回非空 reason 表示该行损坏
func decode(fields []string, cols map[string]int) (model.Snapshot, string) {
	if len(fields) != len(cols) {
		return model.Snapshot{}, fmt.Sprintf("expected %d fields, got %d", len(cols), len(fields))
	}
	get := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(fields[i]), true
	}
	num := func(name string) (float64, string) {
		raw, ok := get(name)
		if !ok {
			return 0, "missing column " + name
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !storage.Finite(v) {
			return 0, fmt.Sprintf("bad %s %q", name, raw)
		}
		return v, ""
	}

	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return model.Snapshot{}, "missing column " + name
		}
	}

	symbol, _ := get("symbol")
	if symbol == "" {
		return model.Snapshot{}, "empty symbol"
	}
	mark, reason := num("mark_price")
	if reason != "" {
		return model.Snapshot{}, reason
	}
	index, reason := num("index_price")
	if reason != "" {
		return model.Snapshot{}, reason
	}
	funding, reason := num("last_funding_rate")
	if reason != "" {
		return model.Snapshot{}, reason
	}
	oi, reason := num("oi")
	if reason != "" {
		return model.Snapshot{}, reason
	}

	ts, reason := decodeTime(get)
	if reason != "" {
		return model.Snapshot{}, reason
	}

	pos := model.NeutralPositioning()
	if _, ok := cols["long_short_ratio"]; ok {
		if v, r := num("long_short_ratio"); r == "" {
			pos.LongShortRatio = v
		}
	}
	if _, ok := cols["long_account"]; ok {
		if v, r := num("long_account"); r == "" {
			pos.LongAccountPct = v
		}
	}
	if _, ok := cols["short_account"]; ok {
		if v, r := num("short_account"); r == "" {
			pos.ShortAccountPct = v
		}
	}

	return model.NewSnapshot(symbol, mark, index, funding, oi, pos, ts), ""
}

func decodeTime(get func(string) (string, bool)) (time.Time, string) {
	if raw, ok := get("timestamp_ms"); ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Sprintf("bad timestamp_ms %q", raw)
		}
		return time.UnixMilli(ms), ""
	}
	if raw, ok := get("timestamp"); ok && raw != "" {
		t, err := time.ParseInLocation(timestampLayout, raw, time.Local)
		if err != nil {
			return time.Time{}, fmt.Sprintf("bad timestamp %q", raw)
		}
		return t, ""
	}
	return time.Time{}, "missing timestamp"
}

var _ port.SnapshotStore = (*Store)(nil)
