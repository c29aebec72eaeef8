package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/models"
)

var (
	// ErrQueueFull is returned by Submit when every buffered slot is taken.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrPoolStopped is returned by Submit after the pool's context is done.
	ErrPoolStopped = errors.New("worker: pool stopped")
)

// Pool runs jobs on a fixed number of goroutines fed by a buffered channel.
type Pool struct {
	processor *Processor
	workers   int
	jobs      chan models.Job
	done      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	logger    *zap.Logger
}

// NewPool creates a pool; call Start before submitting.
func NewPool(processor *Processor, workers, queueSize int, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		processor: processor,
		workers:   workers,
		jobs:      make(chan models.Job, queueSize),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Start launches the workers. They exit when ctx is done; queued jobs not yet started are dropped.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work(ctx, i+1)
		}
		go func() {
			<-ctx.Done()
			close(p.done)
		}()
		p.logger.Info("extraction workers started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.jobs)))
	})
}

// Submit schedules job and returns immediately. The token is the caller's only handle.
func (p *Pool) Submit(_ context.Context, job models.Job) error {
	select {
	case <-p.done:
		return ErrPoolStopped
	default:
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("extraction worker stopped", zap.Int("worker", id))
			return
		case job := <-p.jobs:
			_ = p.processor.Process(ctx, job)
		}
	}
}
