package model

import "time"

// ========== Detection Models ==========

// OIAnalysis 单个合约的持仓量分析结果
type OIAnalysis struct {
	Symbol         string  `json:"symbol"`
	CurrentOI      float64 `json:"oi_current"`
	RecentAvg      float64 `json:"oi_recent_avg"`
	BaselineAvg    float64 `json:"oi_past_avg"`
	Ratio          float64 `json:"oi_ratio"`
	FundingRate    float64 `json:"funding_rate"`
	MarkPrice      float64 `json:"mark_price"`
	BasisPercent   float64 `json:"basis_percent"`
	LongShortRatio float64 `json:"long_short_ratio"`
	HistoryLen     int     `json:"history_len"`
}

// Anomaly 潜在轧空信号：极端资金费率 且 OI 短期激增
// 仅在当前周期内存在，不持久化
type Anomaly struct {
	Symbol         string  `json:"symbol"`
	FundingRate    float64 `json:"funding_rate"`
	OIRatio        float64 `json:"oi_ratio"`
	MarkPrice      float64 `json:"mark_price"`
	BasisPercent   float64 `json:"basis_percent"`
	LongShortRatio float64 `json:"long_short_ratio"`
}

// NewAnomaly 由分析结果生成信号
func NewAnomaly(a OIAnalysis) Anomaly {
	return Anomaly{
		Symbol:         a.Symbol,
		FundingRate:    a.FundingRate,
		OIRatio:        a.Ratio,
		MarkPrice:      a.MarkPrice,
		BasisPercent:   a.BasisPercent,
		LongShortRatio: a.LongShortRatio,
	}
}

// Verdict 检测器单次运行的输出
type Verdict struct {
	Analyses       []OIAnalysis // 历史足够的合约
	ExtremeFunding []Snapshot   // 按 |funding| 降序
	Surges         []OIAnalysis // 按 ratio 降序
	Watch          []OIAnalysis // 接近阈值，仅记录日志
	Anomalies      []Anomaly    // 按 ratio 降序，symbol 去重
}

// HasFindings 是否需要发送汇总
func (v Verdict) HasFindings() bool {
	return len(v.ExtremeFunding) > 0 || len(v.Surges) > 0 || len(v.Anomalies) > 0
}

// CycleSummary 一次调度周期的汇总，用于构建汇总消息，发送后丢弃
type CycleSummary struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Instruments int // listInstruments 返回数量
	Collected   int // 成功采样数量
	Verdict
}
