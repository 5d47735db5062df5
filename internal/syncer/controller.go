// Package syncer owns the live schedule bundle. It loads it from the right
// backend for the current identity, applies mutations, and persists every
// change: synchronously on the device, debounced for the remote account.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/schedule"
	"github.com/benvon/schedule-builder/internal/storage"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a remote write
const DefaultDebounce = 2 * time.Second

var (
	// ErrNotReady is returned by mutations before the bundle has loaded
	ErrNotReady = errors.New("schedule is not loaded yet")
	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("controller already started")
	// ErrReadOnly is returned by mutations while the account could not be
	// read and the device copy is shown in its place
	ErrReadOnly = errors.New("account schedule could not be loaded; changes are disabled until Reload succeeds")
)

// Phase is the controller's lifecycle state
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Identity is the authenticated user, as reported by the auth provider
type Identity struct {
	UserID string
	Email  string
}

// Status is a point-in-time view of the controller for display
type Status struct {
	Phase    Phase
	Backend  string
	Identity *Identity
	// Saving is true while a remote write is pending or in flight
	Saving bool
	// SyncError is the last load or save failure; cleared by the next successful save
	SyncError error
	// ReadOnly is true while a failed account load is covered by the device copy
	ReadOnly bool
}

// LocalBackend is the device store. Clear is used after migrating to an
// account and on sign-out.
type LocalBackend interface {
	storage.Backend
	Clear(ctx context.Context) error
}

// RemoteFactory returns the account backend for an identity
type RemoteFactory func(id Identity) storage.Backend

// Controller holds the single live bundle. All methods are safe for
// concurrent use; mutations are serialized so history is linear.
type Controller struct {
	local     LocalBackend
	remoteFor RemoteFactory
	migrator  *migrate.Migrator
	logger    *zap.Logger
	now       func() time.Time
	newID     schedule.IDFunc
	debounce  time.Duration

	mu       sync.Mutex
	phase    Phase
	bundle   *models.Bundle
	identity *Identity
	remote   storage.Backend
	writer   *debouncer
	gen      uint64
	migrated map[string]bool
	syncErr  error
	saving   bool
	readOnly bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce sets the quiet period before remote writes
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithClock overrides time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how new entity ids are generated
func WithIDGenerator(fn schedule.IDFunc) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// WithMigrator sets the migrator used for imports
func WithMigrator(m *migrate.Migrator) Option {
	return func(c *Controller) {
		if m != nil {
			c.migrator = m
		}
	}
}

// New creates a Controller. remoteFor may be nil when accounts are not
// available, in which case every identity uses the device store.
func New(local LocalBackend, remoteFor RemoteFactory, opts ...Option) *Controller {
	c := &Controller{
		local:     local,
		remoteFor: remoteFor,
		migrator:  migrate.New(),
		logger:    zap.NewNop(),
		now:       time.Now,
		debounce:  DefaultDebounce,
		migrated:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs the first load. A nil identity selects the device store.
func (c *Controller) Start(ctx context.Context, id *Identity) error {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()
	return c.SetIdentity(ctx, id)
}

// SetIdentity switches to the backend for id and reloads. A pending remote
// write for the previous identity is discarded.
func (c *Controller) SetIdentity(ctx context.Context, id *Identity) error {
	c.mu.Lock()
	gen := c.resetLocked(id)
	var alreadyMigrated bool
	if id != nil {
		alreadyMigrated = c.migrated[id.UserID]
	}
	c.mu.Unlock()

	res := c.load(ctx, id, alreadyMigrated)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// A newer switch owns the state now
		return nil
	}
	c.bundle = res.bundle
	c.syncErr = res.syncErr
	c.readOnly = res.readOnly
	if res.migrated && id != nil {
		c.migrated[id.UserID] = true
	}
	if res.remote != nil {
		c.remote = res.remote
		// The fallback bundle must never reach the account
		if !res.readOnly {
			c.writer = newDebouncer(res.remote, c.debounce, c.remoteSaved(gen), c.logger)
		}
	}
	c.phase = PhaseReady
	c.logger.Info("schedule_loaded",
		zap.String("backend", c.backendNameLocked()),
		zap.String("source", res.source),
		zap.Int("project_count", len(res.bundle.Projects)),
	)
	return ctx.Err()
}

// Reload loads the bundle again for the current identity. It is how a
// read-only controller recovers once the account is reachable.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseUninitialized {
		c.mu.Unlock()
		return ErrNotReady
	}
	var id *Identity
	if c.identity != nil {
		cp := *c.identity
		id = &cp
	}
	c.mu.Unlock()
	return c.SetIdentity(ctx, id)
}

// SignOut discards the bundle, clears the device store and starts over with
// the default bundle
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	gen := c.resetLocked(nil)
	c.mu.Unlock()

	clearErr := c.local.Clear(ctx)
	if clearErr != nil {
		c.logger.Warn("local_clear_failed", zap.Error(clearErr))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return clearErr
	}
	c.bundle = models.DefaultBundle(c.now())
	c.phase = PhaseReady
	c.logger.Info("signed_out")
	return clearErr
}

// resetLocked tears down the current backend and enters Loading
func (c *Controller) resetLocked(id *Identity) uint64 {
	if c.writer != nil {
		c.writer.Stop()
		c.writer = nil
	}
	c.gen++
	c.phase = PhaseLoading
	c.bundle = nil
	c.remote = nil
	c.saving = false
	c.syncErr = nil
	c.readOnly = false
	if id != nil {
		cp := *id
		c.identity = &cp
	} else {
		c.identity = nil
	}
	return c.gen
}

type loadResult struct {
	bundle   *models.Bundle
	remote   storage.Backend
	source   string
	migrated bool
	syncErr  error
	readOnly bool
}

// load runs without the lock held
func (c *Controller) load(ctx context.Context, id *Identity, alreadyMigrated bool) loadResult {
	if id == nil || c.remoteFor == nil {
		return c.loadLocal(ctx)
	}

	remote := c.remoteFor(*id)
	res := loadResult{remote: remote}
	logger := c.logger.With(zap.String("user_id", id.UserID))

	b, err := remote.Load(ctx)
	switch {
	case err == nil:
		res.bundle, res.source, res.migrated = b, "remote", true
		return res

	case errors.Is(err, storage.ErrNoData):
		if alreadyMigrated {
			res.bundle, res.source, res.migrated = models.DefaultBundle(c.now()), "default", true
			return res
		}
		local, lerr := c.local.Load(ctx)
		if lerr != nil || local.IsEmpty() {
			res.bundle, res.source, res.migrated = models.DefaultBundle(c.now()), "default", true
			return res
		}
		// First sign-in with device data and an empty account: move it up
		if err := remote.Save(ctx, local); err != nil {
			logger.Warn("local_to_remote_migration_failed", zap.Error(err))
			res.bundle, res.source, res.syncErr = local, "local", err
			return res
		}
		if err := c.local.Clear(ctx); err != nil {
			logger.Warn("local_clear_after_migration_failed", zap.Error(err))
		}
		logger.Info("local_to_remote_migration_completed", zap.Int("project_count", len(local.Projects)))
		res.bundle, res.source, res.migrated = local, "local_migrated", true
		return res

	default:
		logger.Warn("remote_load_failed_falling_back", zap.Error(err))
		fallback := c.loadLocal(ctx)
		res.bundle, res.source, res.syncErr = fallback.bundle, fallback.source, err
		res.readOnly = true
		return res
	}
}

func (c *Controller) loadLocal(ctx context.Context) loadResult {
	b, err := c.local.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNoData) {
			c.logger.Warn("local_load_failed", zap.Error(err))
		}
		return loadResult{bundle: models.DefaultBundle(c.now()), source: "default"}
	}
	return loadResult{bundle: b, source: "local"}
}

// remoteSaved returns the writer callback for generation gen
func (c *Controller) remoteSaved(gen uint64) func(error) {
	return func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.writer == nil {
			return
		}
		c.saving = c.writer.HasPending()
		c.recordSaveLocked(err)
	}
}

func (c *Controller) recordSaveLocked(err error) {
	if err != nil {
		c.logger.Warn("schedule_save_failed", zap.String("backend", c.backendNameLocked()), zap.Error(err))
		c.syncErr = err
		return
	}
	c.syncErr = nil
}

func (c *Controller) backendNameLocked() string {
	if c.remote != nil {
		return "remote"
	}
	return "local"
}

// commit applies fn to a copy of the bundle and persists the result.
// fn's error leaves the bundle untouched. A save failure does not roll back.
func (c *Controller) commit(ctx context.Context, fn func(b *models.Bundle) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady || c.bundle == nil {
		return ErrNotReady
	}
	if c.readOnly {
		return fmt.Errorf("%w: %v", ErrReadOnly, c.syncErr)
	}

	next := c.bundle.Clone()
	if err := fn(next); err != nil {
		return err
	}
	c.stampLocked(next)
	c.bundle = next
	c.persistLocked(ctx, next)
	return nil
}

func (c *Controller) stampLocked(b *models.Bundle) {
	now := c.now().UTC()
	b.UpdatedAt = &now
	if b.CreatedAt == nil {
		created := now
		b.CreatedAt = &created
	}
	b.AppVersion = models.AppVersion
}

// persistLocked hands b to the active backend. Committed bundles are never
// mutated again, so the writer may hold b without copying.
func (c *Controller) persistLocked(ctx context.Context, b *models.Bundle) {
	if c.writer != nil {
		c.saving = true
		c.writer.Submit(b)
		return
	}
	if c.remote != nil {
		// Signed in without a writer: nothing may be written
		return
	}
	c.recordSaveLocked(c.local.Save(ctx, b))
}

// Flush writes a pending remote change immediately
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Flush(ctx)
}

// Close stops the remote writer, dropping anything not yet flushed
func (c *Controller) Close() {
	c.mu.Lock()
	w := c.writer
	c.writer = nil
	c.saving = false
	c.mu.Unlock()
	if w != nil {
		w.Stop()
		w.Wait()
	}
}

// Snapshot returns a deep copy of the live bundle, or nil before it has loaded
func (c *Controller) Snapshot() *models.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bundle == nil {
		return nil
	}
	return c.bundle.Clone()
}

// Status reports the lifecycle and sync state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Phase:     c.phase,
		Backend:   c.backendNameLocked(),
		Saving:    c.saving,
		SyncError: c.syncErr,
		ReadOnly:  c.readOnly,
	}
	if c.identity != nil {
		id := *c.identity
		s.Identity = &id
	}
	return s
}

// Import replaces the bundle with raw after running it through the migrator.
// Malformed input yields a repaired bundle rather than an error.
func (c *Controller) Import(ctx context.Context, raw []byte) error {
	result := c.migrator.Run(raw)
	if result.Repaired() {
		c.logger.Info("import_repaired", zap.Int("repair_count", len(result.Repairs)))
	}
	return c.commit(ctx, func(b *models.Bundle) error {
		*b = *result.Bundle
		return nil
	})
}

// Export returns the bundle as indented JSON
func (c *Controller) Export() ([]byte, error) {
	b := c.Snapshot()
	if b == nil {
		return nil, ErrNotReady
	}
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", err)
	}
	return out, nil
}
