package paysync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	jobSubject    = "paysync.job"
	jobQueueGroup = "paysync-workers"
	lockPrefix    = "paysync:job:"
)

// Locker holds one pending marker per job key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockPrefix+key, time.Now().Unix(), ttl).Result()
}

func (l *redisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, lockPrefix+key).Err()
}

// localLocker serves a single process running without redis.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]time.Time)}
}

func (l *localLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expires, ok := l.locks[key]; ok && time.Now().Before(expires) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *localLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// Queue moves jobs to the dispatcher, over NATS when connected so that any
// instance in the queue group may run them, in process otherwise.
type Queue struct {
	natsConn   *nats.Conn
	locker     Locker
	dispatcher *Dispatcher
	lockTTL    time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	timers map[*time.Timer]struct{}
	closed bool
}

func NewQueue(natsConn *nats.Conn, locker Locker, dispatcher *Dispatcher, lockTTL time.Duration, logger *zap.Logger) *Queue {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Queue{
		natsConn:   natsConn,
		locker:     locker,
		dispatcher: dispatcher,
		lockTTL:    lockTTL,
		logger:     logger,
		timers:     make(map[*time.Timer]struct{}),
	}
}

// Enqueue schedules job unless the same job is already pending.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	ok, err := q.locker.Acquire(ctx, job.Key(), q.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock job %s: %w", job.Key(), err)
	}
	if !ok {
		q.logger.Debug("job already pending", zap.String("job", job.Key()))
		return nil
	}

	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}
	if err := q.publish(ctx, job); err != nil {
		q.Release(ctx, job)
		return err
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, job *Job) error {
	if q.natsConn == nil {
		// The job outlives the request that queued it.
		return q.dispatcher.Submit(context.WithoutCancel(ctx), job)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.natsConn.Publish(jobSubject+"."+string(job.Kind), data)
}

// Retry publishes job again after delay. The job keeps its lock meanwhile.
func (q *Queue) Retry(job *Job, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		if err := q.publish(context.Background(), job); err != nil {
			q.logger.Error("failed to requeue job", zap.String("job", job.Key()), zap.Error(err))
			q.Release(context.Background(), job)
		}
	})
	q.timers[timer] = struct{}{}
}

// Release lets the job be queued again.
func (q *Queue) Release(ctx context.Context, job *Job) {
	if err := q.locker.Release(ctx, job.Key()); err != nil {
		q.logger.Warn("failed to release job lock", zap.String("job", job.Key()), zap.Error(err))
	}
}

// Subscribe feeds jobs published by any instance to the local dispatcher.
func (q *Queue) Subscribe() error {
	if q.natsConn == nil {
		return nil
	}

	sub, err := q.natsConn.QueueSubscribe(jobSubject+".>", jobQueueGroup, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.logger.Error("failed to unmarshal job", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if err := q.dispatcher.Submit(context.Background(), &job); err != nil {
			q.logger.Error("failed to submit job", zap.String("job", job.Key()), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to jobs: %w", err)
	}

	q.mu.Lock()
	q.sub = sub
	q.mu.Unlock()
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	if q.sub != nil {
		return q.sub.Unsubscribe()
	}
	return nil
}
