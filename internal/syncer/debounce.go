package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/storage"
	"go.uber.org/zap"
)

var errWriterStopped = errors.New("writer stopped")

// debouncer is a single-slot mailbox in front of a backend. Submit overwrites
// the slot and restarts the quiet period; when the period elapses the latest
// bundle is written. Writes run one at a time on the debouncer's goroutine.
type debouncer struct {
	backend storage.Backend
	delay   time.Duration
	onDone  func(err error)
	logger  *zap.Logger

	mu      sync.Mutex
	pending *models.Bundle

	notify   chan struct{}
	flushReq chan chan error
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func newDebouncer(backend storage.Backend, delay time.Duration, onDone func(error), logger *zap.Logger) *debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &debouncer{
		backend:  backend,
		delay:    delay,
		onDone:   onDone,
		logger:   logger,
		notify:   make(chan struct{}, 1),
		flushReq: make(chan chan error),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit replaces the pending bundle. It never blocks.
func (d *debouncer) Submit(b *models.Bundle) {
	d.mu.Lock()
	d.pending = b
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// HasPending reports whether a bundle is waiting for the quiet period
func (d *debouncer) HasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush writes the pending bundle now and returns the write's result
func (d *debouncer) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case d.flushReq <- reply:
	case <-d.done:
		return errWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-d.done:
		return errWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drops the pending bundle and aborts an in-flight write. It does not
// wait for the goroutine; use Wait for that.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	d.cancel()
}

// Wait blocks until the goroutine has exited
func (d *debouncer) Wait() {
	<-d.done
}

func (d *debouncer) run() {
	defer close(d.done)

	timer := time.NewTimer(d.delay)
	timer.Stop()
	var timerC <-chan time.Time

	for {
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-d.notify:
			timer.Stop()
			timer.Reset(d.delay)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			_ = d.writePending()
		case reply := <-d.flushReq:
			timer.Stop()
			timerC = nil
			reply <- d.writePending()
		}
	}
}

func (d *debouncer) writePending() error {
	d.mu.Lock()
	b := d.pending
	d.pending = nil
	d.mu.Unlock()
	if b == nil {
		return nil
	}

	err := d.backend.Save(d.ctx, b)
	if d.ctx.Err() != nil {
		// Aborted by an identity switch; the result belongs to nobody
		d.logger.Debug("debounced_write_aborted")
		return d.ctx.Err()
	}
	d.onDone(err)
	return err
}
