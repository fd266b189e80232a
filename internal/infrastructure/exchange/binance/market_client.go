package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	"squeezemon/internal/infrastructure/transport"
)

const (
	DefaultBaseURL = "https://fapi.binance.com"

	pathExchangeInfo   = "/fapi/v1/exchangeInfo"
	pathPremiumIndex   = "/fapi/v1/premiumIndex"
	pathOpenInterest   = "/fapi/v1/openInterest"
	pathTopLongShortAc = "/futures/data/topLongShortAccountRatio"
)

// Getter 由 transport.Client 实现
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// MarketClient Binance U 本位合约行情 REST 客户端
type MarketClient struct {
	http        Getter
	dataBaseURL string // futures/data 接口所在域名，空则与 http 的 base 相同
}

// NewMarketClient 创建行情客户端
func NewMarketClient(http Getter, dataBaseURL string) *MarketClient {
	return &MarketClient{http: http, dataBaseURL: strings.TrimRight(dataBaseURL, "/")}
}

func (c *MarketClient) Name() string { return "BINANCE" }

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		QuoteAsset   string `json:"quoteAsset"`
		ContractType string `json:"contractType"`
		Status       string `json:"status"`
	} `json:"symbols"`
}

// premiumIndexResp Binance 资金费率/标记价格响应
type premiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	Time            int64  `json:"time"`
}

type openInterestResp struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}

type longShortResp struct {
	Symbol         string `json:"symbol"`
	LongShortRatio string `json:"longShortRatio"`
	LongAccount    string `json:"longAccount"`
	ShortAccount   string `json:"shortAccount"`
	Timestamp      int64  `json:"timestamp"`
}

// ExchangeInfo 获取全部合约元数据
func (c *MarketClient) ExchangeInfo(ctx context.Context) ([]port.InstrumentInfo, error) {
	var resp exchangeInfoResp
	if err := c.http.GetJSON(ctx, pathExchangeInfo, nil, &resp); err != nil {
		return nil, fmt.Errorf("binance exchangeInfo: %w", err)
	}
	out := make([]port.InstrumentInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		out = append(out, port.InstrumentInfo{
			Symbol:       s.Symbol,
			QuoteAsset:   s.QuoteAsset,
			ContractType: s.ContractType,
			Status:       s.Status,
		})
	}
	return out, nil
}

// PremiumIndex 获取资金费率与标记/指数价格
func (c *MarketClient) PremiumIndex(ctx context.Context, symbol string) (*port.PremiumIndex, error) {
	var resp premiumIndexResp
	if err := c.http.GetJSON(ctx, pathPremiumIndex, url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, fmt.Errorf("binance premiumIndex %s: %w", symbol, err)
	}

	mark, err := parseFloat("markPrice", resp.MarkPrice)
	if err != nil {
		return nil, err
	}
	index, err := parseFloat("indexPrice", resp.IndexPrice)
	if err != nil {
		return nil, err
	}
	funding, err := parseFloat("lastFundingRate", resp.LastFundingRate)
	if err != nil {
		return nil, err
	}
	return &port.PremiumIndex{
		Symbol:      symbol,
		MarkPrice:   mark,
		IndexPrice:  index,
		FundingRate: funding,
		Time:        resp.Time,
	}, nil
}

// OpenInterest 获取当前持仓量（合约张数）
func (c *MarketClient) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	var resp openInterestResp
	if err := c.http.GetJSON(ctx, pathOpenInterest, url.Values{"symbol": {symbol}}, &resp); err != nil {
		return 0, fmt.Errorf("binance openInterest %s: %w", symbol, err)
	}
	return parseFloat("openInterest", resp.OpenInterest)
}

// TopLongShortAccountRatio 大户账户多空比，只取最新一条
func (c *MarketClient) TopLongShortAccountRatio(ctx context.Context, symbol, period string) (*model.Positioning, error) {
	if period == "" {
		period = "5m"
	}
	q := url.Values{
		"symbol": {symbol},
		"period": {period},
		"limit":  {"1"},
	}
	var resp []longShortResp
	if err := c.http.GetJSON(ctx, c.dataBaseURL+pathTopLongShortAc, q, &resp); err != nil {
		return nil, fmt.Errorf("binance topLongShortAccountRatio %s: %w", symbol, err)
	}
	if len(resp) == 0 {
		return nil, nil
	}

	latest := resp[0]
	pos := model.NeutralPositioning()
	if v, err := strconv.ParseFloat(latest.LongShortRatio, 64); err == nil {
		pos.LongShortRatio = v
	}
	if v, err := strconv.ParseFloat(latest.LongAccount, 64); err == nil {
		pos.LongAccountPct = v
	}
	if v, err := strconv.ParseFloat(latest.ShortAccount, 64); err == nil {
		pos.ShortAccountPct = v
	}
	return &pos, nil
}

func parseFloat(field, raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return v, nil
}

var _ port.MarketData = (*MarketClient)(nil)
var _ Getter = (*transport.Client)(nil)
