package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormClient runs statements through a gorm handle bound to the pinned session.
type gormClient struct {
	*session
	orm *gorm.DB
}

func newGormClient(ctx context.Context, db *sql.DB, ownsDB bool) (Client, error) {
	s, err := pin(ctx, db, ownsDB)
	if err != nil {
		return nil, err
	}

	orm, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      s.conn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &gormClient{session: s, orm: orm}, nil
}

func (c *gormClient) Execute(ctx context.Context, query string) (Result, error) {
	tx := c.orm.WithContext(ctx).Exec(query)
	if tx.Error != nil {
		return Result{}, tx.Error
	}
	return Result{RowsAffected: tx.RowsAffected}, nil
}

func (c *gormClient) Query(ctx context.Context, query string) ([][]any, error) {
	rows, err := c.orm.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}
