// Package main runs the YouTube to MP3 HTTP server with background extraction, retention sweeping and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tubeaudio/backend/config"
	"github.com/tubeaudio/backend/internal/conversion"
	"github.com/tubeaudio/backend/internal/download"
	"github.com/tubeaudio/backend/internal/extractor"
	"github.com/tubeaudio/backend/internal/ratelimit"
	"github.com/tubeaudio/backend/internal/server"
	"github.com/tubeaudio/backend/internal/sweeper"
	"github.com/tubeaudio/backend/internal/worker"
	"github.com/tubeaudio/backend/pkg/queue"
	"github.com/tubeaudio/backend/pkg/redis"
	"github.com/tubeaudio/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	store, err := storage.NewLocal(cfg.Storage.DownloadDir, config.AudioExtension, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage ready", zap.String("dir", store.Root()))

	ytdlp := extractor.NewYTDLP(config.MaxFileSizeBytes,
		extractor.WithBinary(cfg.Extractor.Binary),
		extractor.WithCookiesFile(cfg.Extractor.CookiesFile),
	)
	if err := ytdlp.VerifyInstalled(ctx); err != nil {
		logger.Warn("yt-dlp not available; conversions will fail", zap.Error(err))
	}

	// Archive to S3 (optional)
	var archiver worker.Archiver
	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 archive disabled", zap.Error(err))
		} else {
			archiver = s3Client
		}
	}
	processor := worker.NewProcessor(ytdlp, archiver, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		scheduler conversion.Scheduler
		limiter   ratelimit.Limiter
		pool      *worker.Pool
		consumers sync.WaitGroup
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()

		jobQueue := queue.NewQueue(rdb.Client, logger)
		scheduler = jobQueue
		limiter = ratelimit.NewRedis(rdb.Client)
		if cfg.Worker.Embedded {
			for i := 0; i < cfg.Worker.Count; i++ {
				consumers.Add(1)
				go func() {
					defer consumers.Done()
					processor.Run(workerCtx, jobQueue)
				}()
			}
			logger.Info("queue consumers started", zap.Int("workers", cfg.Worker.Count))
		}
	} else {
		pool = worker.NewPool(processor, cfg.Worker.Count, cfg.Worker.QueueSize, logger)
		pool.Start(workerCtx)
		scheduler = pool
		limiter = ratelimit.NewMemory()
		logger.Info("in-process workers started",
			zap.Int("workers", cfg.Worker.Count),
			zap.Int("queue_size", cfg.Worker.QueueSize),
		)
	}

	// Retention
	var sweepOpts []sweeper.Option
	if s3Client != nil {
		sweepOpts = append(sweepOpts, sweeper.WithRemoveHook(s3Client.RemoveExpired))
	}
	sw := sweeper.New(store.Root(), config.RetentionWindow, config.SweepInterval, logger, sweepOpts...)
	sweepDone := make(chan struct{})
	go func() {
		sw.Run(workerCtx)
		close(sweepDone)
	}()

	router := server.NewRouter(server.Deps{
		Conversion:     conversion.NewHandler(store, scheduler, config.MaxFileSizeBytes, logger),
		Download:       download.NewHandler(store, logger),
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	if pool != nil {
		pool.Wait()
	}
	consumers.Wait()
	<-sweepDone
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
