package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"squeezemon/internal/infrastructure/config"
	"squeezemon/internal/infrastructure/logger"
	"squeezemon/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envPath := flag.String("env", ".env", "path to .env with secrets")
	once := flag.Bool("once", false, "run a single monitoring cycle and exit")
	flag.Parse()

	logger.Setup(logger.Options{Level: "info"})

	// .env 可选，缺失时只用进程环境变量
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("env", *envPath).Msg("load .env failed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	logCloser := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		NoColor:    !cfg.Log.Color,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service initialization failed")
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Error().Err(err).Msg("close resources failed")
		}
	}()

	log.Info().
		Str("config", *configPath).
		Dur("interval", cfg.Monitor.Interval).
		Float64("funding_threshold", cfg.Detector.FundingThreshold).
		Float64("oi_surge_threshold", cfg.Detector.OISurgeThreshold).
		Str("storage", cfg.Storage.Backend).
		Bool("once", *once).
		Msg("squeezemon started")

	if *once {
		sum := sc.Monitor.RunOnce(ctx)
		log.Info().
			Str("cycle", sum.ID).
			Int("collected", sum.Collected).
			Int("anomalies", len(sum.Anomalies)).
			Msg("single cycle done")
		return
	}

	if err := sc.Monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("monitor service exited")
	}
}
