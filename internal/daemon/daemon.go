// Package daemon ties the store, the enrichment worker, and the HTTP API
// into a single lifecycle with flock-based locking to prevent multiple
// concurrent instances.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"songscout/internal/api"
	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/store"
	"songscout/internal/worker"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	worker *worker.Manager
	api    *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DBPath       string
	LockFilePath string
	Jobs         map[store.JobStatus]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, workerManager *worker.Manager, apiServer *api.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || workerManager == nil || apiServer == nil {
		return nil, errors.New("daemon requires config, store, worker, and api server")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "songscoutd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		worker:   workerManager,
		api:      apiServer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and launches
// the worker loop and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another songscout daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	recovered, err := d.store.RecoverRunningJobs(runCtx)
	if err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("recover jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("requeued interrupted jobs", logging.Int64("count", recovered))
	}

	if err := d.worker.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start worker: %w", err)
	}

	go func() {
		if err := d.api.Run(runCtx); err != nil {
			d.logger.Error("api server exited", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("songscout daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("songscout daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.JobStats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Jobs:         stats,
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
