package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

var errFake = errors.New("fake failure")

type memStore struct {
	mu      sync.Mutex
	rows    map[string][]model.Snapshot
	failFor map[string]bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string][]model.Snapshot), failFor: make(map[string]bool)}
}

func (m *memStore) Append(ctx context.Context, s model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.Symbol] = append(m.rows[s.Symbol], s)
	return nil
}

func (m *memStore) RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[symbol] {
		return nil, errFake
	}
	rows := m.rows[symbol]
	if n > len(rows) {
		n = len(rows)
	}
	return append([]model.Snapshot(nil), rows[len(rows)-n:]...), nil
}

func (m *memStore) Size(ctx context.Context, symbol string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[symbol] {
		return 0, errFake
	}
	return len(m.rows[symbol]), nil
}

func (m *memStore) Close() error { return nil }

// seed 写入 OI 序列，最后一条作为本周期最新快照返回
func (m *memStore) seed(symbol string, funding float64, ois ...float64) model.Snapshot {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var last model.Snapshot
	for i, oi := range ois {
		last = model.NewSnapshot(symbol, 100, 100, funding, oi, model.NeutralPositioning(), base.Add(time.Duration(i)*5*time.Minute))
		m.Append(context.Background(), last)
	}
	return last
}

type fakeMarket struct {
	mu       sync.Mutex
	infos    []port.InstrumentInfo
	infoErr  error
	premium  map[string]*port.PremiumIndex
	oiErr    map[string]bool
	posErr   map[string]bool
	posEmpty map[string]bool
	calls    int
}

func (f *fakeMarket) Name() string { return "FAKE" }

func (f *fakeMarket) ExchangeInfo(ctx context.Context) ([]port.InstrumentInfo, error) {
	return f.infos, f.infoErr
}

func (f *fakeMarket) PremiumIndex(ctx context.Context, symbol string) (*port.PremiumIndex, error) {
	f.count()
	p, ok := f.premium[symbol]
	if !ok {
		return nil, errFake
	}
	return p, nil
}

func (f *fakeMarket) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	f.count()
	if f.oiErr[symbol] {
		return 0, errFake
	}
	return 1000, nil
}

func (f *fakeMarket) TopLongShortAccountRatio(ctx context.Context, symbol, period string) (*model.Positioning, error) {
	f.count()
	if f.posErr[symbol] {
		return nil, errFake
	}
	if f.posEmpty[symbol] {
		return nil, nil
	}
	return &model.Positioning{LongShortRatio: 2.5, LongAccountPct: 0.71, ShortAccountPct: 0.29}, nil
}

func (f *fakeMarket) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

type recordingFormatter struct {
	digests []model.CycleSummary
}

func (r *recordingFormatter) FormatAnomaly(a model.Anomaly, ts time.Time) string {
	return "anomaly " + a.Symbol
}

func (r *recordingFormatter) FormatDigest(s model.CycleSummary) string {
	r.digests = append(r.digests, s)
	return "digest"
}
