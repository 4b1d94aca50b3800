// Package workerpool provides a bounded goroutine pool. The matchmaker uses
// it to fan out notification events without letting a burst of realizations
// spawn an unbounded number of goroutines.
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Pool runs submitted jobs on a fixed set of workers backed by a buffered
// queue. Submit blocks when the queue is full, so producers slow down
// instead of being rejected.
type Pool struct {
	jobs    chan func()
	workers int
	logger  *zap.Logger
	wg      sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
}

// New creates a pool with the given worker count and queue size.
func New(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pool{
		jobs:    make(chan func(), queueSize),
		workers: workers,
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Start launches the workers. A panicking job is recovered and logged so a
// single bad job cannot take a worker down.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobs:
					func() {
						defer func() {
							if r := recover(); r != nil {
								p.logger.Error("worker recovered from panic",
									zap.Int("worker_id", workerID),
									zap.Any("panic", r),
								)
							}
						}()
						job()
					}()
				case <-p.quit:
					return
				}
			}
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
}

// Submit enqueues a job. Blocks until the queue has room.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// TrySubmit enqueues a job without blocking and reports whether it was
// accepted.
func (p *Pool) TrySubmit(job func()) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop signals the workers to exit and waits for them. Jobs still sitting
// in the queue are not drained.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
