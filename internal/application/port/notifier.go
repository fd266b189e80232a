package port

import (
	"context"
	"time"

	"squeezemon/internal/domain/model"
)

// Notifier 外部消息通道（Telegram / Discord 等），只接收纯文本
type Notifier interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// SignalPublisher 将信号和最新快照发布给下游消费者
type SignalPublisher interface {
	PublishAnomaly(ctx context.Context, a model.Anomaly, ts time.Time) error
	SaveLatest(ctx context.Context, snap model.Snapshot) error
}
