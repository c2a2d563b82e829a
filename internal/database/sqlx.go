package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqlxClient runs statements through a sqlx session.
type sqlxClient struct {
	*session
	xconn *sqlx.Conn
}

func newSQLXClient(ctx context.Context, db *sql.DB, ownsDB bool) (Client, error) {
	xconn, err := sqlx.NewDb(db, "mysql").Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session: %w", err)
	}
	return &sqlxClient{
		session: &session{db: db, conn: xconn.Conn, ownsDB: ownsDB},
		xconn:   xconn,
	}, nil
}

func (c *sqlxClient) Execute(ctx context.Context, query string) (Result, error) {
	res, err := c.xconn.ExecContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	affected, _ := res.RowsAffected()
	return Result{RowsAffected: affected}, nil
}

func (c *sqlxClient) Query(ctx context.Context, query string) ([][]any, error) {
	rows, err := c.xconn.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
