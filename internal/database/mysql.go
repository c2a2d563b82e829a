package database

import (
	"context"
	"database/sql"
)

// sqlClient is the default adapter, speaking database/sql directly.
type sqlClient struct {
	*session
}

func newSQLClient(ctx context.Context, db *sql.DB, ownsDB bool) (Client, error) {
	s, err := pin(ctx, db, ownsDB)
	if err != nil {
		return nil, err
	}
	return &sqlClient{session: s}, nil
}

func (c *sqlClient) Execute(ctx context.Context, query string) (Result, error) {
	res, err := c.conn.ExecContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	// Multi-statement batches may not report a meaningful count.
	affected, _ := res.RowsAffected()
	return Result{RowsAffected: affected}, nil
}

func (c *sqlClient) Query(ctx context.Context, query string) ([][]any, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}
