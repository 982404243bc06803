package paysync

import (
	"context"

	"go.uber.org/zap"
)

type Worker struct {
	ID         int
	WorkerPool chan chan WorkRequest
	JobChannel chan WorkRequest
	quit       chan bool
	processor  Processor
	logger     *zap.Logger
}

type WorkRequest struct {
	Job  *Job
	Ctx  context.Context
	done chan struct{}
}

// Processor runs one job to completion, including any retry bookkeeping.
type Processor interface {
	Process(ctx context.Context, job *Job)
}

func NewWorker(id int, workerPool chan chan WorkRequest, processor Processor, logger *zap.Logger) Worker {
	return Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan WorkRequest),
		quit:       make(chan bool),
		processor:  processor,
		logger:     logger,
	}
}

func (w Worker) Start() {
	go func() {
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-w.quit:
				return
			}

			select {
			case req := <-w.JobChannel:
				w.logger.Debug("processing job",
					zap.Int("worker_id", w.ID),
					zap.String("kind", string(req.Job.Kind)),
					zap.String("entity_id", req.Job.EntityID))
				w.processor.Process(req.Ctx, req.Job)
				close(req.done)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w Worker) Stop() {
	close(w.quit)
}
