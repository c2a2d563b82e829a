// Package rewinder resets MySQL test databases by deleting rows only from
// the tables that received inserts since the previous reset.
//
// Setup runs once in the root process of a test run. Every process spawned
// afterwards records its inserts through a Tracker; the root then calls
// Clean between tests.
package rewinder

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/dbsmedya/gorewinder/internal/cleaner"
	"github.com/dbsmedya/gorewinder/internal/config"
	"github.com/dbsmedya/gorewinder/internal/database"
	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/tracker"
	"github.com/dbsmedya/gorewinder/internal/types"
)

// Re-exported types so callers outside this module can use them.
type (
	Config         = config.Config
	DatabaseConfig = config.DatabaseConfig
	Client         = database.Client
	Logger         = logger.Logger
	Tracker        = tracker.Tracker
	CleanStats     = cleaner.CleanStats
	TableSet       = types.TableSet
)

// ErrNotRootProcess is returned by Clean and CleanAll outside the root process.
var ErrNotRootProcess = tracker.ErrNotRootProcess

// Options configures Setup.
type Options struct {
	// Databases lists the schemas to reset.
	Databases []DatabaseConfig
	// ExceptTables are never cleared, in any database.
	ExceptTables []string
	// Adapter selects the client: mysql (default), sqlx or gorm.
	Adapter string
	// Clients, when set, are used instead of opening connections.
	// They pair with Databases by index.
	Clients []Client
	// Logger defaults to an info-level text logger.
	Logger *Logger
	// TrackingDir holds the tracker records. Defaults to the system temp dir.
	TrackingDir string
	// Fs backs the tracker records. Defaults to the OS filesystem.
	Fs afero.Fs
	// Parallelism above 1 cleans databases concurrently.
	Parallelism int
}

// Rewinder owns one cleaner per database and the root tracker.
type Rewinder struct {
	cleaners    []*cleaner.Cleaner
	clients     []Client
	ownsClients bool
	tracker     *tracker.Tracker
	parallelism int
	logger      *logger.Logger
}

// Setup prepares the rewinder in the calling process, which becomes the
// root process. Records left by an earlier run with the same pid are removed.
func Setup(ctx context.Context, opts Options) (*Rewinder, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}

	if opts.Clients != nil && len(opts.Clients) != len(opts.Databases) {
		return nil, fmt.Errorf("got %d clients for %d databases", len(opts.Clients), len(opts.Databases))
	}

	r := &Rewinder{
		parallelism: opts.Parallelism,
		ownsClients: opts.Clients == nil,
		logger:      log,
	}

	for i := range opts.Databases {
		dbCfg := opts.Databases[i]

		var client Client
		if opts.Clients != nil {
			client = opts.Clients[i]
		} else {
			c, err := database.Open(ctx, opts.Adapter, &dbCfg)
			if err != nil {
				r.Close()
				return nil, err
			}
			client = c
		}
		r.clients = append(r.clients, client)

		cl, err := cleaner.New(client, dbCfg.Database, opts.ExceptTables, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to create cleaner for %s: %w", dbCfg.Database, err)
		}
		r.cleaners = append(r.cleaners, cl)
	}

	pid := os.Getpid()
	store := tracker.NewStore(opts.Fs, opts.TrackingDir)
	if err := tracker.Publish(pid, store.Dir()); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to publish root pid: %w", err)
	}
	r.tracker = tracker.New(store, pid, tracker.WithLogger(log))
	tracker.Register(r.tracker)

	if err := r.tracker.Reset(); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to reset tracking: %w", err)
	}

	log.WithPID(pid, pid).Debugf("Rewinder ready for %d database(s), records in %s", len(r.cleaners), store.Dir())
	return r, nil
}

// SetupFromConfig runs Setup with the settings of a loaded configuration.
func SetupFromConfig(ctx context.Context, cfg *Config, log *Logger) (*Rewinder, error) {
	return Setup(ctx, Options{
		Databases:    cfg.Databases,
		ExceptTables: cfg.ExceptTables,
		Adapter:      cfg.Adapter,
		Logger:       log,
		TrackingDir:  cfg.TrackingDir(),
		Parallelism:  cfg.Parallelism,
	})
}

// SetupFromFile loads and validates a YAML configuration, then runs Setup.
// The logger is built from the file's logging section.
func SetupFromFile(ctx context.Context, path string) (*Rewinder, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	return SetupFromConfig(ctx, cfg, log)
}

// Tracker returns the root tracker, for recording hooks in this process.
func (r *Rewinder) Tracker() *Tracker {
	return r.tracker
}

// Databases returns the schema names in setup order.
func (r *Rewinder) Databases() []string {
	names := make([]string, len(r.cleaners))
	for i, c := range r.cleaners {
		names[i] = c.Database()
	}
	return names
}

// RecordInsertedTable notes the insert targets of sql. It never fails.
func (r *Rewinder) RecordInsertedTable(sql string) {
	r.tracker.RecordWrite(sql)
}

// TrackedTables returns the union of every process's records.
func (r *Rewinder) TrackedTables() (*TableSet, error) {
	return r.tracker.Aggregate()
}

// Clean deletes rows from every table recorded since the last reset, in
// every database, then resets tracking.
func (r *Rewinder) Clean(ctx context.Context) error {
	_, err := r.CleanWithStats(ctx)
	return err
}

// CleanWithStats is Clean returning per-database statistics.
func (r *Rewinder) CleanWithStats(ctx context.Context) ([]*CleanStats, error) {
	if err := r.tracker.CheckRoot("clean"); err != nil {
		return nil, err
	}

	tables, err := r.tracker.Aggregate()
	if err != nil {
		return nil, err
	}

	return r.run(ctx, func(c *cleaner.Cleaner) (*CleanStats, error) {
		return c.Clean(ctx, tables)
	})
}

// CleanAll deletes rows from every non-excluded table of every database,
// then resets tracking.
func (r *Rewinder) CleanAll(ctx context.Context) error {
	_, err := r.CleanAllWithStats(ctx)
	return err
}

// CleanAllWithStats is CleanAll returning per-database statistics.
func (r *Rewinder) CleanAllWithStats(ctx context.Context) ([]*CleanStats, error) {
	if err := r.tracker.CheckRoot("clean_all"); err != nil {
		return nil, err
	}

	return r.run(ctx, func(c *cleaner.Cleaner) (*CleanStats, error) {
		return c.CleanAll(ctx)
	})
}

// run applies fn to every cleaner and resets tracking once all succeeded.
func (r *Rewinder) run(ctx context.Context, fn func(*cleaner.Cleaner) (*CleanStats, error)) ([]*CleanStats, error) {
	var (
		stats []*CleanStats
		err   error
	)
	if r.parallelism > 1 && len(r.cleaners) > 1 {
		stats, err = r.runParallel(fn)
	} else {
		stats, err = r.runSequential(ctx, fn)
	}
	if err != nil {
		return stats, err
	}

	if err := r.tracker.Reset(); err != nil {
		return stats, err
	}

	for _, s := range stats {
		if s.Skipped {
			continue
		}
		r.logger.WithDatabase(s.Database).Debugf("Cleaned %d tables in %s", len(s.TablesCleared), s.Duration)
	}
	return stats, nil
}

func (r *Rewinder) runSequential(ctx context.Context, fn func(*cleaner.Cleaner) (*CleanStats, error)) ([]*CleanStats, error) {
	stats := make([]*CleanStats, 0, len(r.cleaners))
	for _, c := range r.cleaners {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("clean interrupted: %w", err)
		}
		s, err := fn(c)
		if err != nil {
			return stats, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// runParallel cleans every database on a worker pool. Each cleaner owns its
// session, so no two workers share a connection.
func (r *Rewinder) runParallel(fn func(*cleaner.Cleaner) (*CleanStats, error)) ([]*CleanStats, error) {
	size := r.parallelism
	if size > len(r.cleaners) {
		size = len(r.cleaners)
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	stats := make([]*CleanStats, len(r.cleaners))

	for i, c := range r.cleaners {
		i, c := i, c
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("cleaner for %s panicked: %v", c.Database(), rec))
					mu.Unlock()
				}
			}()

			s, err := fn(c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return
			}
			stats[i] = s
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = multierr.Append(errs, fmt.Errorf("failed to schedule %s: %w", c.Database(), submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	if errs != nil {
		return compact(stats), errs
	}
	return stats, nil
}

func compact(stats []*CleanStats) []*CleanStats {
	out := stats[:0]
	for _, s := range stats {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Close releases every client opened by Setup. Injected clients are left
// to the caller.
func (r *Rewinder) Close() error {
	if !r.ownsClients {
		return nil
	}
	var errs error
	for _, c := range r.clients {
		errs = multierr.Append(errs, c.Close())
	}
	r.clients = nil
	return errs
}

// Ping checks the session of every database.
func (r *Rewinder) Ping(ctx context.Context) error {
	var errs error
	for i, c := range r.clients {
		if err := c.Ping(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.cleaners[i].Database(), err))
		}
	}
	return errs
}
