package model

import "time"

// ========== Market Snapshot ==========

// 多空比缺省值（接口无数据或请求失败时使用）
const (
	NeutralLongShortRatio = 1.0
	NeutralAccountPct     = 50.0
)

// Positioning 账户多空比
type Positioning struct {
	LongShortRatio  float64 `json:"long_short_ratio"`
	LongAccountPct  float64 `json:"long_account"`
	ShortAccountPct float64 `json:"short_account"`
}

// NeutralPositioning 多空持平
func NeutralPositioning() Positioning {
	return Positioning{
		LongShortRatio:  NeutralLongShortRatio,
		LongAccountPct:  NeutralAccountPct,
		ShortAccountPct: NeutralAccountPct,
	}
}

// Snapshot 单个永续合约在某一时刻的观测值
// 只能通过 NewSnapshot 构造，创建后不再修改
type Snapshot struct {
	Symbol          string    `json:"symbol"`
	MarkPrice       float64   `json:"mark_price"`
	IndexPrice      float64   `json:"index_price"`
	Basis           float64   `json:"basis"`         // mark - index
	BasisPercent    float64   `json:"basis_percent"` // basis / index * 100
	FundingRate     float64   `json:"last_funding_rate"`
	OpenInterest    float64   `json:"oi"`
	LongShortRatio  float64   `json:"long_short_ratio"`
	LongAccountPct  float64   `json:"long_account"`
	ShortAccountPct float64   `json:"short_account"`
	CapturedAt      time.Time `json:"ts_ms"`
}

// NewSnapshot 计算基差并将时间截断到毫秒
func NewSnapshot(symbol string, markPrice, indexPrice, fundingRate, openInterest float64, pos Positioning, capturedAt time.Time) Snapshot {
	basis := markPrice - indexPrice
	basisPercent := 0.0
	if indexPrice != 0 {
		basisPercent = basis / indexPrice * 100
	}
	return Snapshot{
		Symbol:          symbol,
		MarkPrice:       markPrice,
		IndexPrice:      indexPrice,
		Basis:           basis,
		BasisPercent:    basisPercent,
		FundingRate:     fundingRate,
		OpenInterest:    openInterest,
		LongShortRatio:  pos.LongShortRatio,
		LongAccountPct:  pos.LongAccountPct,
		ShortAccountPct: pos.ShortAccountPct,
		CapturedAt:      time.UnixMilli(capturedAt.UnixMilli()),
	}
}

// Positioning 返回快照中的多空比部分
func (s Snapshot) Positioning() Positioning {
	return Positioning{
		LongShortRatio:  s.LongShortRatio,
		LongAccountPct:  s.LongAccountPct,
		ShortAccountPct: s.ShortAccountPct,
	}
}

// TimestampMs unix 毫秒
func (s Snapshot) TimestampMs() int64 {
	return s.CapturedAt.UnixMilli()
}
