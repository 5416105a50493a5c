// Package worker defines workers that drain the submission queue into the
// match store and refresh the canonical index.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/matchboard/internal/domain/model"
	"github.com/okian/matchboard/pkg/logger"
	"github.com/okian/matchboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Submission abstracts what workers read off the queue.
type Submission = model.Submission

// Appender persists a submission and returns its store-assigned id.
type Appender interface {
	Append(ctx context.Context, s model.Submission) (int64, error)
}

// Refresher re-runs canonical selection for the group a newly appended
// submission belongs to.
type Refresher interface {
	RefreshGroup(ctx context.Context, s model.Submission) error
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Submission
}

// Worker drains submissions: append to the store, then regroup.
type Worker struct {
	queue     Queue
	appender  Appender
	refresher Refresher
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a new worker with configuration options.
func NewWorker(queue Queue, appender Appender, refresher Refresher, opts ...Option) *Worker {
	w := &Worker{
		queue:     queue,
		appender:  appender,
		refresher: refresher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	subs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-subs:
			if !ok {
				return
			}
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process appends one submission and refreshes its group.
func (w *Worker) process(ctx context.Context, s Submission) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	storeStart := time.Now()
	id, err := w.appender.Append(ctx, s)
	metrics.RecordStorageLatency(float64(time.Since(storeStart).Milliseconds()))
	if err != nil {
		metrics.RecordStorageError()
		metrics.RecordWorkerError("append")
		return fmt.Errorf("append submission: %w", err)
	}
	s.ID = id

	if err := w.refresher.RefreshGroup(ctx, s); err != nil {
		metrics.RecordWorkerError("refresh")
		return fmt.Errorf("refresh canonical group: %w", err)
	}

	if !s.ReceivedAt.IsZero() {
		metrics.RecordIngestLatency(float64(time.Since(s.ReceivedAt).Milliseconds()))
	}

	w.logger.Debug(ctx, "submission ingested",
		logger.Int64("submissionID", id),
		logger.String("guildID", s.GuildID),
		logger.Int("roster", len(s.Roster)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, appender Appender, refresher Refresher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewWorker(
			queue,
			appender,
			refresher,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown gracefully shuts down the entire worker pool, closing the
// queue first so no new submissions arrive.
func (p *Pool) Shutdown(ctx context.Context, q interface{ Close() error }) error {
	if q != nil {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
