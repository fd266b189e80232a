package port

import (
	"context"

	"squeezemon/internal/domain/model"
)

// InstrumentInfo 交易所合约元数据
type InstrumentInfo struct {
	Symbol       string // "BTCUSDT"
	QuoteAsset   string // "USDT"
	ContractType string // "PERPETUAL"
	Status       string // "TRADING"
}

// PremiumIndex 标记价格 / 指数价格 / 最新资金费率
type PremiumIndex struct {
	Symbol      string
	MarkPrice   float64
	IndexPrice  float64
	FundingRate float64 // fraction, 0.001 = 0.1%
	Time        int64   // unix ms
}

// MarketData 交易所行情数据源（Collector 使用）
type MarketData interface {
	Name() string
	ExchangeInfo(ctx context.Context) ([]InstrumentInfo, error)
	PremiumIndex(ctx context.Context, symbol string) (*PremiumIndex, error)
	OpenInterest(ctx context.Context, symbol string) (float64, error)
	// TopLongShortAccountRatio returns nil, nil when the exchange has no bucket yet.
	TopLongShortAccountRatio(ctx context.Context, symbol, period string) (*model.Positioning, error)
}
