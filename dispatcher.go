package paysync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	minTickerInterval = 5 * time.Second
	maxTickerInterval = 30 * time.Second

	// handoffTimeout bounds the wait on a worker that stopped after
	// registering.
	handoffTimeout = 100 * time.Millisecond
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

type Dispatcher struct {
	WorkerPool chan chan WorkRequest
	maxWorkers int
	jobQueue   chan WorkRequest
	processor  Processor
	workers    []Worker
	nextID     int
	stop       chan bool
	stopOnce   sync.Once
	inflight   sync.WaitGroup
	mu         sync.Mutex
	logger     *zap.Logger
}

func NewDispatcher(maxWorkers int, jobQueueSize int, processor Processor, logger *zap.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pool := make(chan chan WorkRequest, maxWorkers)
	return &Dispatcher{
		WorkerPool: pool,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan WorkRequest, jobQueueSize),
		processor:  processor,
		stop:       make(chan bool),
		logger:     logger,
	}
}

// Run starts half the workers; the pool grows with the queue.
func (d *Dispatcher) Run() {
	d.mu.Lock()
	for i := 0; i < max(1, d.maxWorkers/2); i++ {
		d.addWorker()
	}
	d.mu.Unlock()

	go d.dispatch()
}

// Submit queues job, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, job *Job) error {
	select {
	case d.jobQueue <- WorkRequest{Job: job, Ctx: ctx, done: make(chan struct{})}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrDispatcherStopped
	}
}

func (d *Dispatcher) dispatch() {
	tickerInterval := 10 * time.Second
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-d.jobQueue:
			d.inflight.Add(1)
			go func(req WorkRequest) {
				defer d.inflight.Done()
				d.handoff(req)
			}(req)

		case <-ticker.C:
			d.adjustWorkerPool()

			jobQueueLength := len(d.jobQueue)
			if jobQueueLength > 50 {
				tickerInterval = minTickerInterval
			} else if jobQueueLength > 20 {
				tickerInterval = 10 * time.Second
			} else {
				tickerInterval = maxTickerInterval
			}

			ticker.Reset(tickerInterval)
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) handoff(req WorkRequest) {
	for {
		select {
		case jobChannel := <-d.WorkerPool:
			select {
			case jobChannel <- req:
				<-req.done
				return
			case <-time.After(handoffTimeout):
			case <-req.Ctx.Done():
				d.logger.Warn("job context canceled before processing",
					zap.Error(req.Ctx.Err()),
					zap.String("job", req.Job.Key()))
				return
			}
		case <-req.Ctx.Done():
			d.logger.Warn("job context canceled while waiting for available worker",
				zap.Error(req.Ctx.Err()),
				zap.String("job", req.Job.Key()))
			return
		case <-d.stop:
			d.logger.Warn("dropping job on shutdown", zap.String("job", req.Job.Key()))
			return
		}
	}
}

// addWorker must be called with d.mu held.
func (d *Dispatcher) addWorker() Worker {
	d.nextID++
	worker := NewWorker(d.nextID, d.WorkerPool, d.processor, d.logger)
	worker.Start()
	d.workers = append(d.workers, worker)
	return worker
}

func (d *Dispatcher) adjustWorkerPool() {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := len(d.jobQueue)
	threshold := cap(d.jobQueue) / 4
	currentWorkerCount := len(d.workers)

	if pending > threshold && currentWorkerCount < d.maxWorkers {
		worker := d.addWorker()
		d.logger.Info("added worker", zap.Int("worker_id", worker.ID), zap.Int("pending", pending))
	}

	if pending == 0 && currentWorkerCount > 1 {
		worker := d.workers[len(d.workers)-1]
		worker.Stop()
		d.logger.Info("removed worker", zap.Int("worker_id", worker.ID))
	}

	d.cleanupStoppedWorkers()

	if pending > 0 && len(d.workers) == 0 {
		d.addWorker()
		d.logger.Info("added a worker because jobs are pending but no workers are available")
	}
}

func (d *Dispatcher) cleanupStoppedWorkers() {
	var activeWorkers []Worker
	for _, worker := range d.workers {
		select {
		case <-worker.quit:
			d.logger.Debug("cleaned up stopped worker", zap.Int("worker_id", worker.ID))
		default:
			activeWorkers = append(activeWorkers, worker)
		}
	}
	d.workers = activeWorkers
}

// Stop stops dispatching and waits for jobs already handed to a worker.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)

		d.mu.Lock()
		for _, worker := range d.workers {
			worker.Stop()
		}
		d.workers = nil
		d.mu.Unlock()

		d.inflight.Wait()
	})
}
