// Package tracker records which tables received inserts and shares that
// knowledge between the root process and its descendants.
//
// Each process keeps its own set in memory and mirrors it to a record file
// keyed by the root pid and its own pid. Only the root process aggregates
// and resets the records.
package tracker

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/dbsmedya/gorewinder/internal/classifier"
	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/types"
)

// Environment variables that carry tracking identity to every process
// spawned after setup.
const (
	RootPIDEnv     = "GOREWINDER_ROOT_PID"
	TrackingDirEnv = "GOREWINDER_TRACKING_DIR"
)

// ErrNotRootProcess is returned when aggregation or reset is attempted
// outside the process that initialized tracking.
var ErrNotRootProcess = errors.New("not the root process")

// PreconditionError describes a root-only operation called from another process.
type PreconditionError struct {
	Op      string
	RootPID int
	PID     int
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: tracking was initialized in process %d, but %s is called in process %d",
		ErrNotRootProcess, e.RootPID, e.Op, e.PID)
}

// Unwrap makes errors.Is(err, ErrNotRootProcess) hold.
func (e *PreconditionError) Unwrap() error {
	return ErrNotRootProcess
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPID overrides the current process id.
func WithPID(pid int) Option {
	return func(t *Tracker) {
		t.pid = pid
	}
}

// WithLogger sets the logger used for store failures and resets.
func WithLogger(log *logger.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.logger = log
		}
	}
}

// Tracker accumulates inserted tables for one process.
type Tracker struct {
	store   *Store
	rootPID int
	pid     int
	logger  *logger.Logger

	mu     sync.Mutex
	tables *types.TableSet
}

// New creates a tracker for the tree rooted at rootPID. A rootPID of zero
// yields an uninitialized tracker whose RecordWrite does nothing.
func New(store *Store, rootPID int, opts ...Option) *Tracker {
	if store == nil {
		store = NewStore(nil, "")
	}
	t := &Tracker{
		store:   store,
		rootPID: rootPID,
		pid:     os.Getpid(),
		logger:  logger.NewNop(),
		tables:  types.NewTableSet(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FromEnv creates a tracker whose root pid is read from RootPIDEnv.
// A missing or malformed value yields an uninitialized tracker.
func FromEnv(store *Store, opts ...Option) *Tracker {
	rootPID, _ := RootPIDFromEnv()
	return New(store, rootPID, opts...)
}

// processKey identifies the single record writer of a process.
type processKey struct {
	rootPID int
	dir     string
	pid     int
}

var (
	processMu       sync.Mutex
	processTrackers = map[processKey]*Tracker{}
)

// ForProcess returns the tracker of the calling process for the tree
// published in the environment. Calls with the same root pid and record
// directory share one tracker, so every hook in a process feeds the same
// record file. log only applies when the tracker is created.
func ForProcess(log *logger.Logger) *Tracker {
	rootPID, _ := RootPIDFromEnv()
	store := NewStoreFromEnv(nil)
	key := processKey{rootPID: rootPID, dir: store.Dir(), pid: os.Getpid()}

	processMu.Lock()
	defer processMu.Unlock()

	if t, ok := processTrackers[key]; ok {
		return t
	}
	t := New(store, rootPID, WithLogger(log))
	processTrackers[key] = t
	return t
}

// Register makes t the tracker ForProcess returns for its root pid, record
// directory and pid, replacing any earlier one.
func Register(t *Tracker) {
	key := processKey{rootPID: t.rootPID, dir: t.store.Dir(), pid: t.pid}

	processMu.Lock()
	processTrackers[key] = t
	processMu.Unlock()
}

// RootPIDFromEnv parses RootPIDEnv.
func RootPIDFromEnv() (int, bool) {
	raw, ok := os.LookupEnv(RootPIDEnv)
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Publish exports the root pid and record directory so children inherit them.
func Publish(rootPID int, dir string) error {
	if err := os.Setenv(RootPIDEnv, strconv.Itoa(rootPID)); err != nil {
		return err
	}
	return os.Setenv(TrackingDirEnv, dir)
}

// Environ returns env with the tracking variables of t appended, for
// spawning a child explicitly.
func (t *Tracker) Environ(env []string) []string {
	return append(env,
		RootPIDEnv+"="+strconv.Itoa(t.rootPID),
		TrackingDirEnv+"="+t.store.Dir(),
	)
}

// RootPID returns the pid of the process that initialized tracking.
func (t *Tracker) RootPID() int {
	return t.rootPID
}

// PID returns the pid this tracker records for.
func (t *Tracker) PID() int {
	return t.pid
}

// Initialized reports whether a root pid is known.
func (t *Tracker) Initialized() bool {
	return t.rootPID != 0
}

// IsRoot reports whether this tracker runs in the root process.
func (t *Tracker) IsRoot() bool {
	return t.Initialized() && t.pid == t.rootPID
}

// Store returns the record store.
func (t *Tracker) Store() *Store {
	return t.store
}

// RecordWrite notes the insert targets of sql and mirrors the whole set to
// this process's record. It never fails: store errors are logged.
func (t *Tracker) RecordWrite(sql string) {
	if !t.Initialized() {
		return
	}

	found := classifier.Classify(sql)
	if len(found) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.tables.Add(found...)
	// Always rewrite: a reset in the root may have removed the file.
	if err := t.store.Write(t.rootPID, t.pid, t.tables); err != nil {
		t.logger.Warnw("Failed to write tracker record",
			"root_pid", t.rootPID,
			"pid", t.pid,
			"error", err,
		)
	}
}

// Tables returns a snapshot of the tables this process recorded.
func (t *Tracker) Tables() *types.TableSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tables.Clone()
}

// CheckRoot returns a *PreconditionError unless called in the root process.
func (t *Tracker) CheckRoot(op string) error {
	if t.IsRoot() {
		return nil
	}
	return &PreconditionError{Op: op, RootPID: t.rootPID, PID: t.pid}
}

// Aggregate unions every record of the root pid. Records that disappear or
// cannot be read are skipped with a warning.
func (t *Tracker) Aggregate() (*types.TableSet, error) {
	if err := t.CheckRoot("aggregate"); err != nil {
		return nil, err
	}

	paths, err := t.store.Records(t.rootPID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	all := t.tables.Clone()
	t.mu.Unlock()

	for _, path := range paths {
		tables, err := t.store.Read(path)
		if err != nil {
			t.logger.Warnw("Skipping unreadable tracker record", "path", path, "error", err)
			continue
		}
		all.Union(tables)
	}
	return all, nil
}

// Reset removes every record of the root pid and clears the in-memory set.
func (t *Tracker) Reset() error {
	if err := t.CheckRoot("reset"); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed, err := t.store.Purge(t.rootPID)
	if err != nil {
		return err
	}
	t.tables = types.NewTableSet()

	if len(removed) > 0 {
		t.logger.Debugf("Removed tracker records: %v", removed)
	}
	return nil
}
