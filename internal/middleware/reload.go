package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BuildFunc produces a fresh middleware from the current configuration
type BuildFunc func(ctx context.Context) (func(http.Handler) http.Handler, error)

// Reloader applies a middleware whose configuration is reread periodically.
// Every handler wrapped by Middleware is rebuilt on each reload.
type Reloader struct {
	name     string
	build    BuildFunc
	log      *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	wrap     func(http.Handler) http.Handler
	handlers []*reloadable
}

type reloadable struct {
	next    http.Handler
	current atomic.Pointer[http.Handler]
}

func (h *reloadable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if cur := h.current.Load(); cur != nil {
		(*cur).ServeHTTP(w, r)
		return
	}
	h.next.ServeHTTP(w, r)
}

// NewReloader creates a reloader. name labels log lines.
func NewReloader(name string, build BuildFunc, log *zap.Logger, interval time.Duration) *Reloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reloader{name: name, build: build, log: log, interval: interval}
}

// Middleware wraps next with the current configuration. It may be applied to
// several routers; each keeps its own next handler.
func (r *Reloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := &reloadable{next: next}
		r.mu.Lock()
		if r.wrap == nil {
			r.reloadLocked(context.Background())
		}
		r.handlers = append(r.handlers, h)
		r.applyLocked(h)
		r.mu.Unlock()
		return h
	}
}

// Reload rebuilds the middleware now. On error the previous one stays active.
func (r *Reloader) Reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reloadLocked(ctx) {
		for _, h := range r.handlers {
			r.applyLocked(h)
		}
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *Reloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

func (r *Reloader) reloadLocked(ctx context.Context) bool {
	wrap, err := r.build(ctx)
	if err != nil {
		r.log.Warn("middleware_reload_failed", zap.String("middleware", r.name), zap.Error(err))
		return false
	}
	r.wrap = wrap
	return true
}

func (r *Reloader) applyLocked(h *reloadable) {
	if r.wrap == nil {
		return
	}
	cur := r.wrap(h.next)
	h.current.Store(&cur)
}
