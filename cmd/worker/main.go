// Package main runs a standalone extraction worker consuming the Redis job queue.
// It must share DOWNLOAD_DIR with the server.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tubeaudio/backend/config"
	"github.com/tubeaudio/backend/internal/extractor"
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

	if !cfg.Redis.Enabled() {
		logger.Fatal("REDIS_ADDR is required for the standalone worker")
	}

	ctx := context.Background()
	store, err := storage.NewLocal(cfg.Storage.DownloadDir, config.AudioExtension, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	ytdlp := extractor.NewYTDLP(config.MaxFileSizeBytes,
		extractor.WithBinary(cfg.Extractor.Binary),
		extractor.WithCookiesFile(cfg.Extractor.CookiesFile),
	)
	if err := ytdlp.VerifyInstalled(ctx); err != nil {
		logger.Fatal("yt-dlp", zap.Error(err))
	}

	var archiver worker.Archiver
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
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

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(ytdlp, archiver, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(workerCtx, jobQueue)
		}()
	}
	logger.Info("worker started", zap.Int("workers", cfg.Worker.Count), zap.String("dir", store.Root()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
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
