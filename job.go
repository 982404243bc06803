package paysync

import (
	"context"
	"time"
)

type JobKind string

const (
	JobProductSync     JobKind = "product.sync"
	JobWebhookSync     JobKind = "webhook.sync"
	JobRefundCreate    JobKind = "refund.create"
	JobCheckoutRefresh JobKind = "checkout.refresh"
)

// Job is one deferred reconciliation. Jobs for the same kind and entity are
// collapsed while one is pending.
type Job struct {
	Kind     JobKind   `json:"kind"`
	EntityID string    `json:"entity_id,omitempty"`
	Attempt  int       `json:"attempt"`
	QueuedAt time.Time `json:"queued_at"`
}

func (j *Job) Key() string {
	return string(j.Kind) + ":" + j.EntityID
}

type JobHandler func(ctx context.Context, job *Job) error

type JobsConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

var DefaultJobsConfig = JobsConfig{
	Workers:     4,
	QueueSize:   1000,
	MaxAttempts: 10,
	BaseDelay:   time.Minute,
	MaxDelay:    time.Hour,
	LockTTL:     24 * time.Hour,
}

func (c JobsConfig) withDefaults() JobsConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultJobsConfig.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultJobsConfig.QueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultJobsConfig.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultJobsConfig.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultJobsConfig.MaxDelay
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultJobsConfig.LockTTL
	}
	return c
}

// Backoff is the delay before retry number attempt, doubling from BaseDelay
// up to MaxDelay.
func (c JobsConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
