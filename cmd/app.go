package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/config"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/metric"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/memory"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/openaiengine"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/postgres"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/postgres/repository"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/ports/http/handlers"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/ports/http/server"
	"github.com/GiorgioBrux/raimu-sub001/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	level := slog.LevelInfo
	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	registry := memory.NewRoomRegistry()

	engine := openaiengine.New(cfg.Speech)

	// The voice sample library is an optional convenience; the relay runs
	// without it and joins fall back to inline samples.
	var sampleStore usecase.VoiceSampleStore
	var sampleHandler *handlers.VoiceSampleHandler

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Warn("voice sample storage unavailable", slog.Any(constant.Error, err))
	} else {
		defer dbConn.Close()

		sampleRepo := repository.NewVoiceSampleRepo(dbConn)
		sampleStore = sampleRepo
		sampleHandler = handlers.NewVoiceSampleHandler(sampleRepo)
	}

	pipeline := usecase.NewUtterancePipeline(registry, engine, engine, engine)
	signaling := usecase.NewSignalingUsecase(registry, pipeline, sampleStore)

	roomHandler := handlers.NewRoomHandler(registry)
	wsHandler := handlers.NewWebSocketHandler(cfg, signaling)

	echoSrv := server.New(cfg, roomHandler, sampleHandler, wsHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down servers")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("failed to gracefully shutdown metrics server", slog.Any(constant.Error, err))
	}
}
