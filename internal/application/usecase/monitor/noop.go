package monitor

import (
	"context"
	"time"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

type noopPublisher struct{}

func NewNoopPublisher() port.SignalPublisher { return &noopPublisher{} }

func (n *noopPublisher) PublishAnomaly(ctx context.Context, a model.Anomaly, ts time.Time) error {
	return nil
}
func (n *noopPublisher) SaveLatest(ctx context.Context, snap model.Snapshot) error {
	return nil
}

type noopSink struct{}

func (n *noopSink) WriteReport(ts time.Time, text string) error { return nil }
func (n *noopSink) NewLine() error                              { return nil }
