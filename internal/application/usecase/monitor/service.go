package monitor

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

const (
	DefaultInterval      = 5 * time.Minute
	DefaultShutdownGrace = 30 * time.Second
)

type ServiceDeps struct {
	Collector  Collector
	Store      port.SnapshotStore
	Detector   Detector
	Dispatcher Dispatcher
	Publisher  port.SignalPublisher // 可选
	Sink       port.Sink            // 可选
	Formatter  *Formatter

	Interval      time.Duration
	ShutdownGrace time.Duration
	Log           zerolog.Logger
}

// Service 周期调度：采集 → 追加 → 检测 → 告警 → 汇总。单 goroutine，周期不重叠
type Service struct {
	deps ServiceDeps
	fmt  *Formatter
	now  func() time.Time
	log  zerolog.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.ShutdownGrace <= 0 {
		deps.ShutdownGrace = DefaultShutdownGrace
	}
	if deps.Publisher == nil {
		deps.Publisher = NewNoopPublisher()
	}
	if deps.Sink == nil {
		deps.Sink = &noopSink{}
	}
	if deps.Formatter == nil {
		deps.Formatter = NewFormatter(false)
	}
	return &Service{
		deps: deps,
		fmt:  deps.Formatter,
		now:  time.Now,
		log:  deps.Log.With().Str("component", "monitor").Logger(),
	}
}

// Run 立即执行一次，然后每个 interval 执行一次，直到 ctx 取消
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Collector == nil || s.deps.Store == nil || s.deps.Detector == nil || s.deps.Dispatcher == nil {
		return errors.New("monitor: missing dependency")
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.deps.Interval).Msg("monitor started")
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			s.log.Info().Msg("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			// 超时的周期期间到达的 tick 由 ticker 合并，不会排队
			s.runCycle(ctx)
		}
	}
}

// RunOnce 执行单个周期并返回汇总
func (s *Service) RunOnce(ctx context.Context) model.CycleSummary {
	return s.runCycle(ctx)
}

func (s *Service) runCycle(parent context.Context) model.CycleSummary {
	if parent.Err() != nil {
		return model.CycleSummary{}
	}
	ctx, cancel := s.cycleContext(parent)
	defer cancel()
	return s.cycle(ctx)
}

// cycleContext 与信号解耦：收到停止信号后，进行中的周期最多再运行 ShutdownGrace
func (s *Service) cycleContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		s.log.Warn().Dur("grace", s.deps.ShutdownGrace).Msg("shutdown requested, finishing in-flight cycle")
		t := time.AfterFunc(s.deps.ShutdownGrace, cancel)
		context.AfterFunc(ctx, func() { t.Stop() })
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Service) cycle(ctx context.Context) (sum model.CycleSummary) {
	sum.ID = uuid.NewString()
	sum.StartedAt = s.now()
	log := s.log.With().Str("cycle", sum.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("cycle panicked, continuing with next cycle")
		}
	}()

	log.Info().Msg("cycle started")

	symbols := s.deps.Collector.ListInstruments(ctx)
	sum.Instruments = len(symbols)
	if len(symbols) == 0 {
		sum.FinishedAt = s.now()
		log.Warn().Msg("no instruments listed, cycle skipped")
		return sum
	}

	snaps := s.deps.Collector.Collect(ctx, symbols)
	sum.Collected = len(snaps)

	var appendFailed []string
	for _, snap := range snaps {
		if err := s.deps.Store.Append(ctx, snap); err != nil {
			appendFailed = append(appendFailed, snap.Symbol)
			log.Warn().Str("symbol", snap.Symbol).Err(err).Msg("append failed")
			continue
		}
		if err := s.deps.Publisher.SaveLatest(ctx, snap); err != nil {
			log.Debug().Str("symbol", snap.Symbol).Err(err).Msg("save latest failed")
		}
	}

	sum.Verdict = s.deps.Detector.Evaluate(ctx, snaps, appendFailed...)

	log.Info().
		Int("instruments", sum.Instruments).
		Int("collected", sum.Collected).
		Int("append_failed", len(appendFailed)).
		Int("analysed", len(sum.Analyses)).
		Int("extreme_funding", len(sum.ExtremeFunding)).
		Int("surges", len(sum.Surges)).
		Int("anomalies", len(sum.Anomalies)).
		Msg("cycle evaluated")

	for _, a := range sum.Watch {
		log.Info().
			Str("symbol", a.Symbol).
			Float64("oi_ratio", a.Ratio).
			Float64("funding_rate", a.FundingRate).
			Float64("mark_price", a.MarkPrice).
			Msg("oi ratio close to threshold")
	}

	for _, a := range sum.Anomalies {
		log.Warn().
			Str("symbol", a.Symbol).
			Float64("funding_rate", a.FundingRate).
			Float64("oi_ratio", a.OIRatio).
			Float64("mark_price", a.MarkPrice).
			Msg("potential short squeeze")
		s.deps.Dispatcher.AlertAnomaly(ctx, a, sum.StartedAt)
		if err := s.deps.Publisher.PublishAnomaly(ctx, a, sum.StartedAt); err != nil {
			log.Warn().Str("symbol", a.Symbol).Err(err).Msg("publish anomaly failed")
		}
	}

	sum.FinishedAt = s.now()
	s.deps.Dispatcher.SendDigest(ctx, sum)
	_ = s.deps.Sink.WriteReport(sum.FinishedAt, s.fmt.RenderReport(sum))

	log.Info().Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).Msg("cycle finished")
	return sum
}
