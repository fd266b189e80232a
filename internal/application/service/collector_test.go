package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		infos: []port.InstrumentInfo{
			{Symbol: "BTCUSDT", QuoteAsset: "USDT", ContractType: "PERPETUAL", Status: "TRADING"},
			{Symbol: "ETHUSDT", QuoteAsset: "USDT", ContractType: "PERPETUAL", Status: "TRADING"},
			{Symbol: "BTCUSDT_240628", QuoteAsset: "USDT", ContractType: "CURRENT_QUARTER", Status: "TRADING"},
			{Symbol: "BTCUSD_PERP", QuoteAsset: "USD", ContractType: "PERPETUAL", Status: "TRADING"},
			{Symbol: "OLDUSDT", QuoteAsset: "USDT", ContractType: "PERPETUAL", Status: "SETTLING"},
			{Symbol: "SOLUSDT", QuoteAsset: "USDT", ContractType: "PERPETUAL"},
		},
		premium: map[string]*port.PremiumIndex{
			"BTCUSDT": {Symbol: "BTCUSDT", MarkPrice: 45010, IndexPrice: 45000, FundingRate: 0.0001},
			"ETHUSDT": {Symbol: "ETHUSDT", MarkPrice: 3000, IndexPrice: 3001, FundingRate: -0.0015},
			"SOLUSDT": {Symbol: "SOLUSDT", MarkPrice: 150, IndexPrice: 150, FundingRate: 0.0002},
		},
		oiErr:    map[string]bool{},
		posErr:   map[string]bool{},
		posEmpty: map[string]bool{},
	}
}

func newTestCollector(md port.MarketData) *Collector {
	c := NewCollector(md, CollectorConfig{Workers: 2}, zerolog.Nop())
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCollectorListInstrumentsFilters(t *testing.T) {
	c := newTestCollector(newFakeMarket())

	got := c.ListInstruments(context.Background())
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCollectorListInstrumentsFailure(t *testing.T) {
	md := newFakeMarket()
	md.infoErr = errFake
	got := newTestCollector(md).ListInstruments(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %v", got)
	}
}

func TestCollectorSampleDefaults(t *testing.T) {
	md := newFakeMarket()
	md.oiErr["BTCUSDT"] = true
	md.posEmpty["BTCUSDT"] = true
	c := newTestCollector(md)

	snap, err := c.SampleInstrument(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("SampleInstrument failed: %v", err)
	}
	if snap.OpenInterest != 0 {
		t.Errorf("expected OI default 0, got %v", snap.OpenInterest)
	}
	if snap.Positioning() != model.NeutralPositioning() {
		t.Errorf("expected neutral positioning, got %+v", snap.Positioning())
	}
	if snap.Basis != 10 || !snap.CapturedAt.Equal(c.now()) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestCollectorSamplePrimaryFailure(t *testing.T) {
	c := newTestCollector(newFakeMarket())
	snap, err := c.SampleInstrument(context.Background(), "MISSINGUSDT")
	if err == nil || snap != nil {
		t.Errorf("expected primary failure, got %+v (%v)", snap, err)
	}
}

func TestCollectorIsolatesFailures(t *testing.T) {
	md := newFakeMarket()
	md.posErr["ETHUSDT"] = true
	c := newTestCollector(md)

	got := c.Collect(context.Background(), []string{"BTCUSDT", "MISSINGUSDT", "ETHUSDT", "SOLUSDT"})
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if got[0].Symbol != "BTCUSDT" || got[1].Symbol != "ETHUSDT" || got[2].Symbol != "SOLUSDT" {
		t.Errorf("result order should follow input, got %s %s %s", got[0].Symbol, got[1].Symbol, got[2].Symbol)
	}
	if got[1].LongShortRatio != model.NeutralLongShortRatio {
		t.Errorf("expected neutral positioning for ETHUSDT, got %v", got[1].LongShortRatio)
	}
	if got[0].LongShortRatio != 2.5 || got[2].OpenInterest != 1000 {
		t.Errorf("other instruments should be unaffected: %+v", got)
	}
}

func TestCollectorPacing(t *testing.T) {
	md := newFakeMarket()
	c := NewCollector(md, CollectorConfig{Workers: 4, Pacing: 5 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	got := c.Collect(context.Background(), []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	elapsed := time.Since(start)

	if len(got) != 3 || md.calls != 9 {
		t.Fatalf("expected 3 snapshots from 9 requests, got %d/%d", len(got), md.calls)
	}
	// 9 个请求共享限速器，burst 1：至少 8 个间隔
	if elapsed < 35*time.Millisecond {
		t.Errorf("requests not paced, took %v", elapsed)
	}
}
