package service

import (
	"context"

	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	domainservice "squeezemon/internal/domain/service"
)

const (
	DefaultFundingThreshold = 0.001
	DefaultOISurgeThreshold = 2.0
	DefaultWatchRatio       = 1.7
	DefaultMinHistory       = 10
	DefaultRecentWindow     = 3
	DefaultBaselineWindow   = 10
)

type DetectorConfig struct {
	FundingThreshold float64
	OISurgeThreshold float64
	WatchRatio       float64
	MinHistory       int
	RecentWindow     int
	BaselineWindow   int
}

func (c *DetectorConfig) applyDefaults() {
	if c.FundingThreshold <= 0 {
		c.FundingThreshold = DefaultFundingThreshold
	}
	if c.OISurgeThreshold <= 0 {
		c.OISurgeThreshold = DefaultOISurgeThreshold
	}
	if c.WatchRatio <= 0 {
		c.WatchRatio = DefaultWatchRatio
	}
	if c.MinHistory <= 0 {
		c.MinHistory = DefaultMinHistory
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = DefaultRecentWindow
	}
	if c.BaselineWindow <= 0 {
		c.BaselineWindow = DefaultBaselineWindow
	}
}

// Detector 基于滚动历史判断资金费率极端与 OI 激增。无跨周期状态
type Detector struct {
	store port.SnapshotStore
	cfg   DetectorConfig
	log   zerolog.Logger
}

func NewDetector(store port.SnapshotStore, cfg DetectorConfig, log zerolog.Logger) *Detector {
	cfg.applyDefaults()
	return &Detector{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "detector").Logger(),
	}
}

// Analyze 计算单个合约的 OI 比值；历史不足时返回 nil, nil
func (d *Detector) Analyze(ctx context.Context, snap model.Snapshot) (*model.OIAnalysis, error) {
	size, err := d.store.Size(ctx, snap.Symbol)
	if err != nil {
		return nil, err
	}
	if size < d.cfg.MinHistory {
		return nil, nil
	}

	window, err := d.store.RecentWindow(ctx, snap.Symbol, d.cfg.BaselineWindow)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	ois := make([]float64, len(window))
	for i, s := range window {
		ois[i] = s.OpenInterest
	}
	recent := domainservice.Mean(domainservice.Tail(ois, d.cfg.RecentWindow))
	baseline := domainservice.Mean(domainservice.Tail(ois, d.cfg.BaselineWindow))

	return &model.OIAnalysis{
		Symbol:         snap.Symbol,
		CurrentOI:      ois[len(ois)-1],
		RecentAvg:      recent,
		BaselineAvg:    baseline,
		Ratio:          domainservice.OIRatio(recent, baseline),
		FundingRate:    snap.FundingRate,
		MarkPrice:      snap.MarkPrice,
		BasisPercent:   snap.BasisPercent,
		LongShortRatio: snap.LongShortRatio,
		HistoryLen:     size,
	}, nil
}

// Evaluate 对本周期全部快照给出判定
// unrecorded 为本周期追加失败的合约：历史窗口不含当前快照，只参与资金费率判断
func (d *Detector) Evaluate(ctx context.Context, latest []model.Snapshot, unrecorded ...string) model.Verdict {
	var v model.Verdict
	extreme := make(map[string]bool)
	skip := make(map[string]bool, len(unrecorded))
	for _, sym := range unrecorded {
		skip[sym] = true
	}

	for _, snap := range latest {
		if domainservice.IsExtremeFunding(snap.FundingRate, d.cfg.FundingThreshold) {
			v.ExtremeFunding = append(v.ExtremeFunding, snap)
			extreme[snap.Symbol] = true
		}
	}
	domainservice.SortByAbsFunding(v.ExtremeFunding)

	seen := make(map[string]bool)
	for _, snap := range latest {
		if seen[snap.Symbol] {
			continue
		}
		seen[snap.Symbol] = true
		if skip[snap.Symbol] {
			d.log.Debug().Str("symbol", snap.Symbol).Msg("current snapshot not recorded, oi analysis skipped")
			continue
		}

		a, err := d.Analyze(ctx, snap)
		if err != nil {
			d.log.Warn().Str("symbol", snap.Symbol).Err(err).Msg("history unavailable, instrument skipped")
			continue
		}
		if a == nil {
			continue
		}
		v.Analyses = append(v.Analyses, *a)

		switch {
		case domainservice.IsSurge(a.Ratio, d.cfg.OISurgeThreshold):
			v.Surges = append(v.Surges, *a)
			if extreme[a.Symbol] {
				v.Anomalies = append(v.Anomalies, model.NewAnomaly(*a))
			}
		case a.Ratio > d.cfg.WatchRatio:
			v.Watch = append(v.Watch, *a)
		}
	}

	domainservice.SortAnalysesByRatio(v.Surges)
	domainservice.SortAnalysesByRatio(v.Watch)
	domainservice.SortAnomaliesByRatio(v.Anomalies)
	return v
}
