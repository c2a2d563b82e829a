package rewinder

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/dbsmedya/gorewinder/internal/tracker"
)

// NewTracker returns the tracker of the current process, root or
// descendant, using the root pid and record directory published by Setup.
// Repeated calls return the same tracker; in the root process that is the
// one Setup created. Outside a tracked process tree it records nothing.
func NewTracker(log *Logger) *Tracker {
	return tracker.ForProcess(log)
}

// gormPlugin feeds the SQL of successful gorm statements to a tracker.
type gormPlugin struct {
	tracker *Tracker
}

// GormPlugin returns a gorm plugin that records inserts made through
// Create and Exec. Register it with db.Use.
func GormPlugin(t *Tracker) gorm.Plugin {
	return &gormPlugin{tracker: t}
}

func (p *gormPlugin) Name() string {
	return "gorewinder:tracker"
}

func (p *gormPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("gorewinder:record_create", p.record); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("gorewinder:record_raw", p.record)
}

func (p *gormPlugin) record(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement == nil || tx.DryRun {
		return
	}
	p.tracker.RecordWrite(tx.Statement.SQL.String())
}

// Execer is implemented by *sql.DB, *sql.Tx, *sql.Conn and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordingExecer records the insert targets of every successful statement.
type RecordingExecer struct {
	Execer
	tracker *Tracker
}

// WrapExecer wraps e so that its successful statements are recorded by t.
func WrapExecer(e Execer, t *Tracker) *RecordingExecer {
	return &RecordingExecer{Execer: e, tracker: t}
}

// ExecContext runs the statement and records it when it succeeds.
func (r *RecordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.Execer.ExecContext(ctx, query, args...)
	if err == nil {
		r.tracker.RecordWrite(query)
	}
	return res, err
}
