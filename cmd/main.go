package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/api"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/logging"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/outbox"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/s3"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/detection"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/services/zone"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/watchdog"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/websocket"
)

func main() {
	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)
	log.Info().Msg("main: init...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Инициализация s3
	minioClient, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Secure, s3.Buckets{
		Frames:      cfg.Minio.FramesBucket,
		Snapshots:   cfg.Minio.SnapshotsBucket,
		Predictions: cfg.Minio.PredictionsBucket,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MinIO")
	}
	if err := minioClient.EnsureBuckets(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create buckets")
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	detectClient := detection.NewClient(cfg.Detection.Endpoint, cfg.Detection.Timeout, cfg.Detection.UpstreamConfidence)
	registry := zone.NewRegistry(db)

	r := runner.New(runner.Deps{
		Detector: detectClient,
		Filter: detection.NewFilter(detection.FilterConfig{
			MinConfidence: cfg.Detection.MinConfidence,
			MinWidth:      cfg.Detection.MinWidth,
			MinHeight:     cfg.Detection.MinHeight,
		}),
		Zones:     registry,
		Evaluator: zone.NewEvaluator(),
		Store:     db,
		Storage:   minioClient,
		Hub:       hub,
	}, cfg.Detection.Retries)

	// Кадры из Kafka
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.FramesTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Kafka consumer")
	}
	defer consumer.Close()
	consumer.StartListening(ctx)
	go r.ListenAndRun(ctx, consumer.Messages())

	// Горутина для обработки аутбокса
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Kafka producer")
	}
	defer producer.Close()
	go outbox.NewDispatcher(db, producer, cfg.Outbox.Interval, cfg.Outbox.BatchSize).Start(ctx)

	// Горутина для поиска молчащих камер
	go watchdog.New(db, cfg.Watchdog.Interval, cfg.Watchdog.StaleAfter).Start(ctx)

	handlers := api.NewHandlers(registry, r, db, detectClient)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handlers, hub.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown")
	}
}
