package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/models"
)

// Extractor turns a job into an audio file at job.OutputPath or fails.
type Extractor interface {
	Extract(ctx context.Context, job models.Job) error
}

// Archiver copies a finished file somewhere durable. Optional.
type Archiver interface {
	ArchiveAudio(ctx context.Context, token, localPath string) error
}

// JobSource is a shared queue consumed by Run.
type JobSource interface {
	Dequeue(ctx context.Context) (*models.Job, error)
	Fail(ctx context.Context, job models.Job, cause error) error
}

// dequeueBackoff is the pause after a failed dequeue.
const dequeueBackoff = 5 * time.Second

// Processor executes extraction jobs: run the extractor, then archive the result if configured.
type Processor struct {
	extractor Extractor
	archiver  Archiver
	logger    *zap.Logger
}

// NewProcessor creates an extraction processor. archiver may be nil.
func NewProcessor(extractor Extractor, archiver Archiver, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{extractor: extractor, archiver: archiver, logger: logger}
}

// Process executes one extraction job. Failures are returned for logging only; there is no retry.
func (p *Processor) Process(ctx context.Context, job models.Job) error {
	start := time.Now()
	p.logger.Info("extraction started",
		zap.String("token", job.Token),
		zap.String("quality", string(job.Quality)),
	)

	if err := p.extractor.Extract(ctx, job); err != nil {
		p.logger.Error("extraction failed",
			zap.String("token", job.Token),
			zap.String("source_url", job.SourceURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("extraction completed",
		zap.String("token", job.Token),
		zap.Duration("elapsed", time.Since(start)),
	)

	if p.archiver != nil {
		if err := p.archiver.ArchiveAudio(ctx, job.Token, job.OutputPath); err != nil {
			// The local file is still served; the archive is best effort.
			p.logger.Warn("archive failed", zap.String("token", job.Token), zap.Error(err))
		}
	}
	return nil
}

// Run consumes src until ctx is done. Failed jobs are recorded on the source and dropped.
// An in-flight job is cancelled with ctx and Run returns only after it has finished.
func (p *Processor) Run(ctx context.Context, src JobSource) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("extraction worker stopping")
			return
		default:
		}

		job, err := src.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			select {
			case <-time.After(dequeueBackoff):
			case <-ctx.Done():
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, *job); err != nil {
			// Still record jobs interrupted by shutdown.
			if fErr := src.Fail(context.WithoutCancel(ctx), *job, err); fErr != nil {
				p.logger.Error("record failed job", zap.String("token", job.Token), zap.Error(fErr))
			}
		}
	}
}
