package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/sugawarayuuta/sonnet"

	"squeezemon/internal/application/port"
)

const DefaultAPIBase = "https://api.telegram.org"

// sendMessage 文本上限 4096（按 UTF-16 计）
const maxText = 4096

var ErrMissingCredentials = errors.New("telegram: bot token and chat id are required")

type Config struct {
	APIBase  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Notifier 通过 Bot API sendMessage 发送纯文本消息（不使用 Markdown，避免格式错误）
type Notifier struct {
	base   string
	token  string
	chatID string
	http   *http.Client
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		Username string `json:"username"`
	} `json:"result"`
}

func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		base:   strings.TrimRight(cfg.APIBase, "/"),
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", truncate(text, maxText))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err = n.do(req)
	return err
}

// Verify 调用 getMe 校验 bot token，返回机器人用户名
func (n *Notifier) Verify(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint("getMe"), nil)
	if err != nil {
		return "", err
	}
	resp, err := n.do(req)
	if err != nil {
		return "", err
	}
	return resp.Result.Username, nil
}

// truncate 超长时截断并以 "…" 结尾
func truncate(text string, max int) string {
	if len(utf16.Encode([]rune(text))) <= max {
		return text
	}
	units := 0
	for i, r := range text {
		units += utf16.RuneLen(r)
		if units > max-1 {
			return text[:i] + "…"
		}
	}
	return text
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.base, n.token, method)
}

func (n *Notifier) do(req *http.Request) (*apiResponse, error) {
	resp, err := n.http.Do(req)
	if err != nil {
		// url.Error 会带上含 token 的完整地址
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("telegram %s: %w", req.Method, uerr.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out apiResponse
	if err := sonnet.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("telegram: status %d, undecodable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return nil, fmt.Errorf("telegram: status %d: %s", resp.StatusCode, out.Description)
	}
	return &out, nil
}

var _ port.Notifier = (*Notifier)(nil)
