// Package cleaner deletes rows from the tables of one database.
package cleaner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/gorewinder/internal/catalog"
	"github.com/dbsmedya/gorewinder/internal/database"
	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/sqlutil"
	"github.com/dbsmedya/gorewinder/internal/types"
)

// DisableForeignKeyChecks is sent before every delete batch on the same session.
const DisableForeignKeyChecks = "SET FOREIGN_KEY_CHECKS = 0;"

// Client is the part of a database client the cleaner uses.
type Client interface {
	Execute(ctx context.Context, query string) (database.Result, error)
	Query(ctx context.Context, query string) ([][]any, error)
}

// CleanStats describes one Clean call.
type CleanStats struct {
	Database      string
	TablesCleared []string
	Skipped       bool // no table qualified, nothing was sent
	Duration      time.Duration
}

// Cleaner clears tables of a single database. Foreign key checks are
// disabled for the batch, so tables are deleted in no particular order.
type Cleaner struct {
	client   Client
	database string
	except   *types.TableSet
	catalog  *catalog.Catalog
	logger   *logger.Logger
}

// New creates a cleaner for the named database. Tables in except are never
// cleared.
func New(client Client, database string, except []string, log *logger.Logger) (*Cleaner, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	log = log.WithDatabase(database)

	cat, err := catalog.New(client, log)
	if err != nil {
		return nil, err
	}

	return &Cleaner{
		client:   client,
		database: database,
		except:   types.NewTableSet(except...),
		catalog:  cat,
		logger:   log,
	}, nil
}

// Database returns the schema name this cleaner works on.
func (c *Cleaner) Database() string {
	return c.database
}

// ExceptTables returns the tables that are never cleared.
func (c *Cleaner) ExceptTables() []string {
	return c.except.Names()
}

// AllTables returns every table of the database. The list is loaded once.
func (c *Cleaner) AllTables(ctx context.Context) (*types.TableSet, error) {
	return c.catalog.Tables(ctx)
}

// TargetTables computes (tables - except) ∩ all tables.
func (c *Cleaner) TargetTables(ctx context.Context, tables *types.TableSet) (*types.TableSet, error) {
	all, err := c.AllTables(ctx)
	if err != nil {
		return nil, err
	}
	return tables.Minus(c.except).Intersect(all), nil
}

// CleanAll clears every table except the excluded ones.
func (c *Cleaner) CleanAll(ctx context.Context) (*CleanStats, error) {
	all, err := c.AllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clean database %s: %w", c.database, err)
	}
	return c.Clean(ctx, all)
}

// Clean clears the given tables. Names that are excluded or do not exist in
// the database are ignored. When nothing qualifies no statement is sent.
func (c *Cleaner) Clean(ctx context.Context, tables *types.TableSet) (*CleanStats, error) {
	startTime := time.Now()
	stats := &CleanStats{Database: c.database}

	if tables == nil {
		tables = types.NewTableSet()
	}

	target, err := c.TargetTables(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to clean database %s: %w", c.database, err)
	}

	if target.IsEmpty() {
		if c.logger.DebugEnabled() {
			all, _ := c.AllTables(ctx)
			c.logger.Debugf("Skip DELETE query because target tables are empty. target tables: [%s], except tables: [%s], all tables: [%s]",
				tables, c.except, all)
		}
		stats.Skipped = true
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("clean interrupted: %w", err)
	}

	if err := c.execute(ctx, DisableForeignKeyChecks); err != nil {
		return nil, fmt.Errorf("failed to clean database %s: %w", c.database, err)
	}
	if err := c.execute(ctx, DeleteStatement(target.Names())); err != nil {
		return nil, fmt.Errorf("failed to clean database %s: %w", c.database, err)
	}

	stats.TablesCleared = target.Names()
	stats.Duration = time.Since(startTime)
	return stats, nil
}

// DeleteStatement joins one DELETE per table into a single batch.
func DeleteStatement(tables []string) string {
	quoted := sqlutil.QuoteIdentifiers(tables)
	for i, table := range quoted {
		quoted[i] = "DELETE FROM " + table
	}
	return strings.Join(quoted, ";")
}

// execute runs query and, at debug level, logs it with its duration.
func (c *Cleaner) execute(ctx context.Context, query string) error {
	if !c.logger.DebugEnabled() {
		_, err := c.client.Execute(ctx, query)
		return err
	}

	start := time.Now()
	if _, err := c.client.Execute(ctx, query); err != nil {
		return err
	}
	c.logger.Statement(c.database, time.Since(start), query)
	return nil
}
