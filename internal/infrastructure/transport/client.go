package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

const maxErrorBody = 512

// Config 重试策略与超时
type Config struct {
	BaseURL       string
	Timeout       time.Duration // per attempt
	MaxAttempts   int
	BackoffFactor time.Duration // first retry delay, doubled each retry
	MaxBackoff    time.Duration
	UserAgent     string
}

// Client 带重试的只读 HTTP 客户端
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	log         zerolog.Logger
}

// New 创建客户端，零值字段使用默认值
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	var rt http.RoundTripper = &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.UserAgent != "" {
		rt = userAgentTransport{agent: cfg.UserAgent, base: rt}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Transport: rt},
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		minBackoff:  cfg.BackoffFactor,
		maxBackoff:  cfg.MaxBackoff,
		log:         log.With().Str("component", "transport").Logger(),
	}
}

// GetJSON GET 请求并解码 JSON；200 内的业务错误返回 *APIError
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := checkAPIError(c.endpoint(path, query), body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := sonnet.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Get 返回 2xx 响应体；网络错误、超时与 500/502/504 按指数退避重试
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.endpoint(path, query)
	b := &backoff.Backoff{Min: c.minBackoff, Max: c.maxBackoff, Factor: 2}

	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, body, err := c.do(ctx, endpoint)
		if err == nil && status >= 200 && status < 300 {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TransportError{Method: http.MethodGet, URL: endpoint, Attempts: attempt, StatusCode: status, Err: ctxErr}
		}

		lastStatus, lastBody, lastErr = status, truncate(body), err
		if err == nil {
			lastErr = fmt.Errorf("%w: %d", ErrHTTPStatus, status)
			if !retryableStatus(status) {
				return nil, &TransportError{Method: http.MethodGet, URL: endpoint, Attempts: attempt, StatusCode: status, Body: lastBody, Err: lastErr}
			}
		}
		if attempt == c.maxAttempts {
			break
		}

		wait := b.Duration()
		c.log.Debug().
			Str("url", endpoint).
			Int("attempt", attempt).
			Int("status", status).
			AnErr("cause", err).
			Dur("backoff", wait).
			Msg("retrying request")
		if err := sleep(ctx, wait); err != nil {
			return nil, &TransportError{Method: http.MethodGet, URL: endpoint, Attempts: attempt, StatusCode: lastStatus, Body: lastBody, Err: err}
		}
	}

	return nil, &TransportError{
		Method:     http.MethodGet,
		URL:        endpoint,
		Attempts:   c.maxAttempts,
		StatusCode: lastStatus,
		Body:       lastBody,
		Err:        lastErr,
	}
}

// do 执行单次请求，超时计为一次失败
func (c *Client) do(ctx context.Context, endpoint string) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = c.baseURL + path
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// checkAPIError Binance 风格 {"code":-1121,"msg":"Invalid symbol."}
func checkAPIError(endpoint string, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var payload struct {
		Code *int    `json:"code"`
		Msg  *string `json:"msg"`
	}
	if err := sonnet.Unmarshal(trimmed, &payload); err != nil {
		return nil
	}
	if payload.Code == nil || payload.Msg == nil || *payload.Code == 0 || *payload.Code == http.StatusOK {
		return nil
	}
	return &APIError{URL: endpoint, Code: *payload.Code, Msg: *payload.Msg}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// userAgentTransport sets a custom User-Agent header on all outgoing requests.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}
