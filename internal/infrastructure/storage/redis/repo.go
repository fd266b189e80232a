package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sugawarayuuta/sonnet"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

// Publisher 把异常信号推送到 Redis Stream + PubSub，并维护每个合约的最新快照
type Publisher struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	signalStream string
	signalChan   string
}

type latestSnapshot struct {
	Symbol         string  `json:"symbol"`
	MarkPrice      float64 `json:"mark_price"`
	IndexPrice     float64 `json:"index_price"`
	BasisPercent   float64 `json:"basis_percent"`
	FundingRate    float64 `json:"funding_rate"`
	OpenInterest   float64 `json:"oi"`
	LongShortRatio float64 `json:"long_short_ratio"`
	Ts             int64   `json:"ts_ms"`
}

type anomalySignal struct {
	Ts             int64   `json:"ts_ms"`
	Symbol         string  `json:"symbol"`
	FundingRate    float64 `json:"funding_rate"`
	OIRatio        float64 `json:"oi_ratio"`
	MarkPrice      float64 `json:"mark_price"`
	BasisPercent   float64 `json:"basis_percent"`
	LongShortRatio float64 `json:"long_short_ratio"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, signalStream, signalChan string) *Publisher {
	if strings.TrimSpace(prefix) == "" {
		prefix = "squeezemon"
	}
	if strings.TrimSpace(signalStream) == "" {
		signalStream = prefix + ":anomalies"
	}
	if strings.TrimSpace(signalChan) == "" {
		signalChan = prefix + ":anomalies:pub"
	}
	return &Publisher{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyLatest:    prefix + ":latest",
		signalStream: signalStream,
		signalChan:   signalChan,
	}
}

func (p *Publisher) SaveLatest(ctx context.Context, s model.Snapshot) error {
	b, err := encodeLatest(s)
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, p.keyLatest, s.Symbol, string(b))
	if p.ttl > 0 {
		pipe.Expire(ctx, p.keyLatest, p.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (p *Publisher) PublishAnomaly(ctx context.Context, a model.Anomaly, ts time.Time) error {
	// 1) Stream: XADD <stream> * ts_ms symbol funding_rate oi_ratio
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.signalStream,
		Values: map[string]any{
			"ts_ms":        ts.UnixMilli(),
			"symbol":       a.Symbol,
			"funding_rate": a.FundingRate,
			"oi_ratio":     a.OIRatio,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	msg, err := encodeAnomaly(a, ts)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.signalChan, string(msg)).Err()
}

func (p *Publisher) Close() error { return p.rdb.Close() }

func encodeLatest(s model.Snapshot) ([]byte, error) {
	return sonnet.Marshal(latestSnapshot{
		Symbol:         s.Symbol,
		MarkPrice:      s.MarkPrice,
		IndexPrice:     s.IndexPrice,
		BasisPercent:   s.BasisPercent,
		FundingRate:    s.FundingRate,
		OpenInterest:   s.OpenInterest,
		LongShortRatio: s.LongShortRatio,
		Ts:             s.TimestampMs(),
	})
}

func encodeAnomaly(a model.Anomaly, ts time.Time) ([]byte, error) {
	return sonnet.Marshal(anomalySignal{
		Ts:             ts.UnixMilli(),
		Symbol:         a.Symbol,
		FundingRate:    a.FundingRate,
		OIRatio:        a.OIRatio,
		MarkPrice:      a.MarkPrice,
		BasisPercent:   a.BasisPercent,
		LongShortRatio: a.LongShortRatio,
	})
}

var _ port.SignalPublisher = (*Publisher)(nil)
