package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/schedule-builder/internal/config"
	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/logger"
	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/services/oidc"
	"github.com/benvon/schedule-builder/internal/storage"
	"github.com/benvon/schedule-builder/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is one planner invocation: config, device store and a started controller
type app struct {
	cfg      *config.ClientConfig
	logger   *zap.Logger
	kv       *storage.SQLiteKV
	db       *database.DB
	migrator *migrate.Migrator
	ctrl     *syncer.Controller
	sess     *session
}

// openEnv loads config and opens the device store without starting a controller
func openEnv(opts *rootOptions) (*app, error) {
	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewCLILogger(opts.debug || cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	kv, err := storage.OpenSQLiteKV(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local data at %s: %w", cfg.DataPath, err)
	}
	return &app{
		cfg:      cfg,
		logger:   log,
		kv:       kv,
		migrator: migrate.New(migrate.WithLogger(log)),
	}, nil
}

// openApp opens the environment and starts the controller for the current
// identity: the direct database user, the logged-in account, or the device
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	a, err := openEnv(opts)
	if err != nil {
		return nil, err
	}

	var remoteFor syncer.RemoteFactory
	var identity *syncer.Identity

	switch {
	case a.cfg.DatabaseURL != "":
		db, err := database.New(a.cfg.DatabaseURL)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
		a.db = db
		records := storage.NewDirectRecordStore(database.NewScheduleRepository(db))
		remoteFor = a.remoteFactory(records)
		identity = &syncer.Identity{UserID: a.cfg.DirectUserID}

	case a.cfg.APIURL != "":
		sess, err := loadSession(ctx, a.kv)
		if err != nil {
			a.logger.Warn("session_unreadable", zap.Error(err))
		}
		if sess != nil {
			a.sess = sess
			client := oidc.NewClientFromLoginConfig(&sess.LoginConfig, sess.RedirectURI)
			ts := newPersistingTokenSource(client.TokenSource(context.Background(), sess.Token), a.kv, sess, a.logger)
			records := storage.NewHTTPRecordStore(a.cfg.APIURL, ts, a.logger)
			remoteFor = a.remoteFactory(records)
			identity = &syncer.Identity{UserID: sess.UserID, Email: sess.Email}
		}
	}

	a.ctrl = syncer.New(
		storage.NewLocalStore(a.kv, a.migrator, a.logger),
		remoteFor,
		syncer.WithLogger(a.logger),
		syncer.WithDebounce(a.cfg.Debounce),
		syncer.WithMigrator(a.migrator),
	)
	if err := a.ctrl.Start(ctx, identity); err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return a, nil
}

func (a *app) remoteFactory(records storage.RecordStore) syncer.RemoteFactory {
	return func(id syncer.Identity) storage.Backend {
		return storage.NewRemoteStore(id.UserID, records, a.migrator, a.logger)
	}
}

// close flushes pending remote writes and releases everything a opened
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.ctrl != nil {
		if err := a.ctrl.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("changes were not synced: %w", err))
		}
		a.ctrl.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed_to_close_database", zap.Error(err))
		}
	}
	if err := a.kv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close local data: %w", err))
	}
	_ = logger.Sync(a.logger)
	return errors.Join(errs...)
}

// runWithApp wraps fn with openApp and close
func runWithApp(opts *rootOptions, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, opts)
		if err != nil {
			return err
		}
		runErr := fn(cmd, a, args)
		return errors.Join(runErr, a.close(ctx))
	}
}
