// Package queue carries revision archive jobs from the API to the worker
// over RabbitMQ, and sweeps what they leave behind.
package queue

import (
	"context"
	"time"
)

// Delivery is one consumed job. The consumer must call exactly one of Ack or Nack.
type Delivery interface {
	Job() *Job
	Ack() error
	Nack(requeue bool) error
}

// Publisher is the side of the queue the API needs
type Publisher interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is a Publisher that can also be consumed
type JobQueue interface {
	Publisher

	// Consume delivers jobs until ctx is cancelled. prefetchCount bounds the
	// unacknowledged deliveries held at once. Both channels are closed when
	// consumption stops; the error channel carries at most one error.
	Consume(ctx context.Context, prefetchCount int) (<-chan Delivery, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered jobs older than a retention window
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
