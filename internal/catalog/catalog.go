// Package catalog lists the tables of the current schema.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cast"

	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/types"
)

// TablesQuery lists every table of the schema the session is connected to.
const TablesQuery = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE()"

// Querier is the part of a database client the catalog needs.
type Querier interface {
	Query(ctx context.Context, query string) ([][]any, error)
}

// Catalog caches the table list of one database for its whole lifetime.
// The schema is assumed not to change while the process runs.
type Catalog struct {
	querier Querier
	logger  *logger.Logger

	mu     sync.Mutex
	tables *types.TableSet
}

// New creates a catalog reading through q.
func New(q Querier, log *logger.Logger) (*Catalog, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Catalog{querier: q, logger: log}, nil
}

// Tables returns the table set of the schema. The first successful query is
// cached; a failed query is not, so the next call tries again.
func (c *Catalog) Tables(ctx context.Context) (*types.TableSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tables != nil {
		return c.tables.Clone(), nil
	}

	rows, err := c.querier.Query(ctx, TablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := types.NewTableSet()
	for i, row := range rows {
		if len(row) == 0 {
			return nil, fmt.Errorf("table list row %d has no columns", i)
		}
		name, err := cast.ToStringE(row[0])
		if err != nil {
			return nil, fmt.Errorf("table list row %d: %w", i, err)
		}
		tables.Add(name)
	}

	c.logger.Debugf("Loaded %d tables from catalog", tables.Len())
	c.tables = tables
	return tables.Clone(), nil
}

// Cached reports whether the table list has been loaded.
func (c *Catalog) Cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables != nil
}
