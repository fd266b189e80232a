package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
	domainservice "squeezemon/internal/domain/service"
)

// DigestTopN 汇总消息中资金费率与 OI 激增各列出的条数
const DigestTopN = 10

type MessageFormatter interface {
	FormatAnomaly(a model.Anomaly, ts time.Time) string
	FormatDigest(s model.CycleSummary) string
}

// Dispatcher 发送单条异常告警与周期汇总。只尝试一次，失败只记日志
type Dispatcher struct {
	notifier  port.Notifier
	formatter MessageFormatter
	log       zerolog.Logger
}

// NewDispatcher notifier 为 nil 表示告警关闭
func NewDispatcher(notifier port.Notifier, formatter MessageFormatter, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:  notifier,
		formatter: formatter,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *Dispatcher) Enabled() bool { return d.notifier != nil }

// AlertAnomaly 返回消息是否发送成功
func (d *Dispatcher) AlertAnomaly(ctx context.Context, a model.Anomaly, ts time.Time) bool {
	if d.notifier == nil {
		d.log.Warn().Str("symbol", a.Symbol).Msg("alerts disabled, anomaly not sent")
		return false
	}
	if err := d.notifier.Send(ctx, d.formatter.FormatAnomaly(a, ts)); err != nil {
		d.log.Error().
			Str("notifier", d.notifier.Name()).
			Str("symbol", a.Symbol).
			Err(err).
			Msg("failed to send anomaly alert")
		return false
	}
	d.log.Info().Str("notifier", d.notifier.Name()).Str("symbol", a.Symbol).Msg("anomaly alert sent")
	return true
}

// SendDigest 仅当存在极端资金费率、OI 激增或异常时发送
func (d *Dispatcher) SendDigest(ctx context.Context, s model.CycleSummary) bool {
	if !s.HasFindings() {
		return false
	}
	if d.notifier == nil {
		d.log.Warn().Msg("alerts disabled, digest not sent")
		return false
	}

	digest := s
	digest.ExtremeFunding = domainservice.Top(s.ExtremeFunding, DigestTopN)
	digest.Surges = domainservice.Top(s.Surges, DigestTopN)

	if err := d.notifier.Send(ctx, d.formatter.FormatDigest(digest)); err != nil {
		d.log.Error().Str("notifier", d.notifier.Name()).Err(err).Msg("failed to send digest")
		return false
	}
	d.log.Info().Str("notifier", d.notifier.Name()).Msg("digest sent")
	return true
}
