package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"squeezemon/internal/application/port"
	"squeezemon/internal/application/service"
	"squeezemon/internal/application/usecase/monitor"
	"squeezemon/internal/infrastructure/config"
	"squeezemon/internal/infrastructure/exchange/binance"
	"squeezemon/internal/infrastructure/notify"
	"squeezemon/internal/infrastructure/notify/discord"
	"squeezemon/internal/infrastructure/notify/telegram"
	"squeezemon/internal/infrastructure/storage"
	"squeezemon/internal/infrastructure/storage/composite"
	"squeezemon/internal/infrastructure/storage/csvlog"
	"squeezemon/internal/infrastructure/storage/postgres"
	redisrepo "squeezemon/internal/infrastructure/storage/redis"
	"squeezemon/internal/infrastructure/storage/sqlite"
	"squeezemon/internal/infrastructure/transport"
	"squeezemon/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	httpClient *transport.Client
	market     *binance.MarketClient
	store      port.SnapshotStore
	publisher  port.SignalPublisher
	notifier   port.Notifier

	// 输出端口
	Sink port.Sink

	// 应用组件
	Collector  *service.Collector
	Detector   *service.Detector
	Dispatcher *service.Dispatcher
	Monitor    *monitor.Service

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext，所有依赖在这里按顺序组装
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	// 1. 行情数据源
	ex := sc.Config.Exchange
	sc.httpClient = transport.New(transport.Config{
		BaseURL:       ex.BaseURL,
		Timeout:       ex.Timeout,
		MaxAttempts:   ex.RetryAttempts,
		BackoffFactor: ex.BackoffFactor,
		UserAgent:     ex.UserAgent,
	}, log.Logger)
	sc.market = binance.NewMarketClient(sc.httpClient, ex.DataBaseURL)

	// 2. 通知通道
	sc.initializeNotifiers()

	// 3. 应用组件
	sc.Collector = service.NewCollector(sc.market, service.CollectorConfig{
		QuoteAsset:        ex.QuoteAsset,
		ContractType:      ex.ContractType,
		PositioningPeriod: ex.PositioningPeriod,
		Workers:           sc.Config.Monitor.Workers,
		Pacing:            ex.Pacing,
	}, log.Logger)

	d := sc.Config.Detector
	sc.Detector = service.NewDetector(sc.store, service.DetectorConfig{
		FundingThreshold: d.FundingThreshold,
		OISurgeThreshold: d.OISurgeThreshold,
		WatchRatio:       d.WatchRatio,
		MinHistory:       d.MinHistory,
		RecentWindow:     d.RecentWindow,
		BaselineWindow:   d.BaselineWindow,
	}, log.Logger)

	formatter := monitor.NewFormatter(sc.Config.Log.Color)
	sc.Dispatcher = service.NewDispatcher(sc.notifier, formatter, log.Logger)

	sc.Monitor = monitor.NewService(monitor.ServiceDeps{
		Collector:     sc.Collector,
		Store:         sc.store,
		Detector:      sc.Detector,
		Dispatcher:    sc.Dispatcher,
		Publisher:     sc.publisher,
		Sink:          sc.Sink,
		Formatter:     formatter,
		Interval:      sc.Config.Monitor.Interval,
		ShutdownGrace: sc.Config.Monitor.ShutdownGrace,
		Log:           log.Logger,
	})

	log.Info().
		Str("exchange", sc.market.Name()).
		Str("storage", sc.Config.Storage.Backend).
		Bool("alerts", sc.Dispatcher.Enabled()).
		Bool("redis", sc.publisher != nil).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 主存储 + 可选 SQLite 镜像 + 可选 Redis 信号发布
func (sc *ServiceContext) initializeStorage() error {
	primary, err := sc.openPrimaryStore()
	if err != nil {
		return err
	}
	sc.store = primary

	if sc.Config.Storage.MirrorSQLite && sc.Config.Storage.Backend != "sqlite" {
		mirror, err := sqlite.New(sc.Config.Storage.SQLitePath, log.Logger)
		if err != nil {
			_ = primary.Close()
			return fmt.Errorf("sqlite mirror: %w", err)
		}
		sc.store = composite.New(primary, mirror)
		log.Info().Str("path", sc.Config.Storage.SQLitePath).Msg("✓ SQLite mirror enabled")
	}

	store := sc.store
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing snapshot store")
		return store.Close()
	})

	// Redis 只用于信号发布，不可用时降级为 no-op，不影响采集
	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			log.Warn().Err(err).Str("addr", sc.Config.Redis.Addr).Msg("redis unavailable, signal publishing disabled")
		}
	}
	return nil
}

func (sc *ServiceContext) openPrimaryStore() (port.SnapshotStore, error) {
	st := sc.Config.Storage
	switch st.Backend {
	case "csv":
		s, err := csvlog.New(st.Dir, st.Fsync, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", s.Dir()).Msg("✓ CSV snapshot log initialized")
		return s, nil
	case "sqlite":
		s, err := sqlite.New(st.SQLitePath, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", st.SQLitePath).Msg("✓ SQLite initialized")
		return s, nil
	case "postgres":
		s, err := postgres.New(st.PostgresDSN, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("✓ Postgres initialized")
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, st.Backend)
	}
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rc := sc.Config.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	pub := redisrepo.New(rdb, rc.Prefix, time.Duration(rc.TTLSeconds)*time.Second, rc.SignalStream, rc.SignalChannel)
	sc.publisher = pub

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return pub.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initializeNotifiers 凭证缺失时不报错，只关闭告警
func (sc *ServiceContext) initializeNotifiers() {
	nc := sc.Config.Notify
	var channels []port.Notifier

	if sc.Config.TelegramConfigured() {
		tg, err := telegram.New(telegram.Config{
			APIBase:  nc.Telegram.APIBase,
			BotToken: nc.Telegram.BotToken,
			ChatID:   nc.Telegram.ChatID,
			Timeout:  nc.Timeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("telegram disabled")
		} else {
			if nc.Telegram.Verify {
				sc.verifyTelegram(tg)
			}
			channels = append(channels, tg)
		}
	} else if nc.Telegram.Enabled {
		log.Warn().Msg("telegram enabled but TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID missing")
	}

	if nc.Discord.Enabled {
		dc, err := discord.New(nc.Discord.WebhookURL, nc.Discord.Username, nc.Timeout)
		if err != nil {
			log.Warn().Err(err).Msg("discord disabled")
		} else {
			channels = append(channels, dc)
		}
	}

	switch len(channels) {
	case 0:
		log.Warn().Err(ErrAlertsDisabled).Msg("alerts will only be logged")
	case 1:
		sc.notifier = channels[0]
	default:
		sc.notifier = notify.NewMulti(channels...)
	}
}

func (sc *ServiceContext) verifyTelegram(tg *telegram.Notifier) {
	ctx, cancel := context.WithTimeout(sc.Ctx, 10*time.Second)
	defer cancel()

	name, err := tg.Verify(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("telegram bot token verification failed")
		return
	}
	log.Info().Str("bot", "@"+name).Msg("✓ Telegram bot verified")
}

// Close 按注册的逆序释放资源
func (sc *ServiceContext) Close() error {
	var firstErr error
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sc.closerChain = nil
	return firstErr
}
