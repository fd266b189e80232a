package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"squeezemon/internal/application/port"
)

// discord 单条消息上限 2000 字符
const maxContent = 2000

var ErrMissingWebhook = errors.New("discord: webhook url is required")

// Notifier 通过 Webhook 发送纯文本消息
type Notifier struct {
	webhookURL string
	username   string
	http       *http.Client
}

type webhookPayload struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

func New(webhookURL, username string, timeout time.Duration) (*Notifier, error) {
	if webhookURL == "" {
		return nil, ErrMissingWebhook
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

func (n *Notifier) Name() string { return "discord" }

func (n *Notifier) Send(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxContent {
		text = string(r[:maxContent-1]) + "…"
	}
	data, err := sonnet.Marshal(webhookPayload{Username: n.username, Content: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
