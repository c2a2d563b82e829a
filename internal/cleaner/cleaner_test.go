package cleaner

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gorewinder/internal/catalog"
	"github.com/dbsmedya/gorewinder/internal/database"
	"github.com/dbsmedya/gorewinder/internal/logger"
	"github.com/dbsmedya/gorewinder/internal/types"
)

func newMockCleaner(t *testing.T, except []string, log *logger.Logger) (*Cleaner, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := database.FromDB(context.Background(), "", db)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	if log == nil {
		log = logger.NewNop()
	}
	c, err := New(client, "app_test", except, log)
	require.NoError(t, err)
	return c, mock
}

func expectTables(mock sqlmock.Sqlmock, tables ...string) {
	rows := sqlmock.NewRows([]string{"TABLE_NAME"})
	for _, table := range tables {
		rows.AddRow(table)
	}
	mock.ExpectQuery(regexp.QuoteMeta(catalog.TablesQuery)).WillReturnRows(rows)
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil, "app_test", nil, logger.NewNop())
	assert.Error(t, err)
}

func TestDeleteStatement(t *testing.T) {
	assert.Equal(t, "DELETE FROM `orders`", DeleteStatement([]string{"orders"}))
	assert.Equal(t, "DELETE FROM `a`;DELETE FROM `b`;DELETE FROM `we``ird`",
		DeleteStatement([]string{"a", "b", "we`ird"}))
	assert.Equal(t, "", DeleteStatement(nil))
}

func TestClean_DeletesTargetTables(t *testing.T) {
	c, mock := newMockCleaner(t, []string{"schema_migrations"}, nil)

	expectTables(mock, "orders", "users", "schema_migrations")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`;DELETE FROM `users`")).WillReturnResult(sqlmock.NewResult(0, 5))

	stats, err := c.Clean(context.Background(), types.NewTableSet("orders", "users"))
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, "app_test", stats.Database)
	assert.Equal(t, []string{"orders", "users"}, stats.TablesCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_HonorsExclusion(t *testing.T) {
	c, mock := newMockCleaner(t, []string{"schema_migrations"}, nil)

	expectTables(mock, "orders", "schema_migrations")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^" + regexp.QuoteMeta("DELETE FROM `orders`") + "$").WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := c.Clean(context.Background(), types.NewTableSet("orders", "schema_migrations"))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, stats.TablesCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_IgnoresUnknownTables(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)

	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^" + regexp.QuoteMeta("DELETE FROM `orders`") + "$").WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := c.Clean(context.Background(), types.NewTableSet("dropped_table", "orders"))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, stats.TablesCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_EmptyTargetSendsNothing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, mock := newMockCleaner(t, []string{"schema_migrations"}, logger.FromZap(zap.New(core)))

	expectTables(mock, "orders", "schema_migrations")

	tests := []struct {
		name   string
		tables *types.TableSet
	}{
		{"nil", nil},
		{"empty", types.NewTableSet()},
		{"only excluded", types.NewTableSet("schema_migrations")},
		{"only unknown", types.NewTableSet("ghost")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := c.Clean(context.Background(), tt.tables)
			require.NoError(t, err)
			assert.True(t, stats.Skipped)
			assert.Empty(t, stats.TablesCleared)
		})
	}

	// Only the catalog query reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())

	skips := logs.FilterMessageSnippet("Skip DELETE query").All()
	require.Len(t, skips, len(tests))
	assert.Contains(t, skips[2].Message, "target tables: [schema_migrations]")
	assert.Contains(t, skips[2].Message, "all tables: [orders, schema_migrations]")
	assert.Equal(t, "app_test", skips[0].ContextMap()["database"])
}

func TestCleanAll(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)

	expectTables(mock, "a", "b", "c")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `a`;DELETE FROM `b`;DELETE FROM `c`")).WillReturnResult(sqlmock.NewResult(0, 9))

	stats, err := c.CleanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, stats.TablesCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanAll_WithExclusion(t *testing.T) {
	c, mock := newMockCleaner(t, []string{"b"}, nil)

	expectTables(mock, "a", "b", "c")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `a`;DELETE FROM `c`")).WillReturnResult(sqlmock.NewResult(0, 4))

	stats, err := c.CleanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, stats.TablesCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllTables_Cached(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)

	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))

	for i := 0; i < 2; i++ {
		_, err := c.CleanAll(context.Background())
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_CatalogError(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(catalog.TablesQuery)).WillReturnError(errors.New("access denied"))

	_, err := c.Clean(context.Background(), types.NewTableSet("orders"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_test")
	assert.Contains(t, err.Error(), "access denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_ForeignKeyStatementError(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)

	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnError(errors.New("read only"))

	_, err := c.Clean(context.Background(), types.NewTableSet("orders"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read only")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClean_DeleteError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, mock := newMockCleaner(t, nil, logger.FromZap(zap.New(core)))

	deleteErr := errors.New("lock wait timeout")
	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnError(deleteErr)

	_, err := c.Clean(context.Background(), types.NewTableSet("orders"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, deleteErr))
	assert.NoError(t, mock.ExpectationsWereMet())

	// The failed statement is not logged as executed.
	assert.Equal(t, 1, logs.FilterMessageSnippet("Cleaner SQL").Len())
}

func TestClean_LogsStatementsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, mock := newMockCleaner(t, nil, logger.FromZap(zap.New(core)))

	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := c.Clean(context.Background(), types.NewTableSet("orders"))
	require.NoError(t, err)

	statements := logs.FilterMessageSnippet("Cleaner SQL").All()
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0].Message, "[gorewinder][app_test]")
	assert.Contains(t, statements[0].Message, DisableForeignKeyChecks)
	assert.Contains(t, statements[1].Message, "DELETE FROM `orders`")
}

func TestClean_NoStatementLogsAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c, mock := newMockCleaner(t, nil, logger.FromZap(zap.New(core)))

	expectTables(mock, "orders")
	mock.ExpectExec(regexp.QuoteMeta(DisableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := c.Clean(context.Background(), types.NewTableSet("orders"))
	require.NoError(t, err)
	assert.Equal(t, 0, logs.Len())
}

func TestClean_CancelledContext(t *testing.T) {
	c, mock := newMockCleaner(t, nil, nil)
	expectTables(mock, "orders")

	// Warm the catalog so only the cancellation matters.
	_, err := c.AllTables(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Clean(ctx, types.NewTableSet("orders"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessors(t *testing.T) {
	c, _ := newMockCleaner(t, []string{"schema_migrations", "ar_internal_metadata"}, nil)
	assert.Equal(t, "app_test", c.Database())
	assert.Equal(t, []string{"schema_migrations", "ar_internal_metadata"}, c.ExceptTables())
}
