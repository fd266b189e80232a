package monitor

import (
	"context"
	"time"

	"squeezemon/internal/domain/model"
)

type Collector interface {
	ListInstruments(ctx context.Context) []string
	Collect(ctx context.Context, symbols []string) []model.Snapshot
}

type Detector interface {
	Evaluate(ctx context.Context, latest []model.Snapshot, unrecorded ...string) model.Verdict
}

type Dispatcher interface {
	AlertAnomaly(ctx context.Context, a model.Anomaly, ts time.Time) bool
	SendDigest(ctx context.Context, s model.CycleSummary) bool
}
