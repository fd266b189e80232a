package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

const (
	DefaultQuoteAsset        = "USDT"
	DefaultContractType      = "PERPETUAL"
	DefaultPositioningPeriod = "5m"
	DefaultWorkers           = 4
	DefaultPacing            = 10 * time.Millisecond
)

type CollectorConfig struct {
	QuoteAsset        string
	ContractType      string
	PositioningPeriod string
	Workers           int
	// Pacing 相邻两次请求的最小间隔，所有 worker 共享；0 表示不限速
	Pacing time.Duration
}

// Collector 拉取合约列表并逐个采样行情快照
type Collector struct {
	md      port.MarketData
	cfg     CollectorConfig
	limiter *rate.Limiter
	now     func() time.Time
	log     zerolog.Logger
}

func NewCollector(md port.MarketData, cfg CollectorConfig, log zerolog.Logger) *Collector {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = DefaultQuoteAsset
	}
	if cfg.ContractType == "" {
		cfg.ContractType = DefaultContractType
	}
	if cfg.PositioningPeriod == "" {
		cfg.PositioningPeriod = DefaultPositioningPeriod
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Pacing), 1)
	}

	return &Collector{
		md:      md,
		cfg:     cfg,
		limiter: limiter,
		now:     time.Now,
		log:     log.With().Str("component", "collector").Str("exchange", md.Name()).Logger(),
	}
}

// ListInstruments 返回符合报价资产与合约类型的合约；失败时返回空列表
func (c *Collector) ListInstruments(ctx context.Context) []string {
	if err := c.limiter.Wait(ctx); err != nil {
		return []string{}
	}
	infos, err := c.md.ExchangeInfo(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to list instruments")
		return []string{}
	}

	out := make([]string, 0, len(infos))
	for _, info := range infos {
		if !strings.EqualFold(info.QuoteAsset, c.cfg.QuoteAsset) || !strings.EqualFold(info.ContractType, c.cfg.ContractType) {
			continue
		}
		if info.Status != "" && info.Status != "TRADING" {
			continue
		}
		out = append(out, info.Symbol)
	}
	c.log.Debug().Int("total", len(infos)).Int("selected", len(out)).Msg("instruments listed")
	return out
}

// SampleInstrument 采样单个合约。主行情失败返回 error，OI 与多空比失败时降级为默认值
func (c *Collector) SampleInstrument(ctx context.Context, symbol string) (*model.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pi, err := c.md.PremiumIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("premium index %s: %w", symbol, err)
	}
	if pi == nil {
		return nil, fmt.Errorf("premium index %s: empty response", symbol)
	}

	oi := 0.0
	if err := c.limiter.Wait(ctx); err == nil {
		if v, err := c.md.OpenInterest(ctx, symbol); err != nil {
			c.log.Debug().Str("symbol", symbol).Err(err).Msg("open interest unavailable, using 0")
		} else {
			oi = v
		}
	}

	pos := model.NeutralPositioning()
	if err := c.limiter.Wait(ctx); err == nil {
		p, err := c.md.TopLongShortAccountRatio(ctx, symbol, c.cfg.PositioningPeriod)
		switch {
		case err != nil:
			c.log.Debug().Str("symbol", symbol).Err(err).Msg("positioning unavailable, using neutral")
		case p != nil:
			pos = *p
		}
	}

	snap := model.NewSnapshot(symbol, pi.MarkPrice, pi.IndexPrice, pi.FundingRate, oi, pos, c.now())
	return &snap, nil
}

// Collect 并发采样，单个合约失败不影响其它合约；结果顺序与 symbols 一致
func (c *Collector) Collect(ctx context.Context, symbols []string) []model.Snapshot {
	results := make([]*model.Snapshot, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			snap, err := c.SampleInstrument(ctx, symbol)
			if err != nil {
				c.log.Warn().Str("symbol", symbol).Err(err).Msg("sample failed, skipped this cycle")
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Snapshot, 0, len(symbols))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
