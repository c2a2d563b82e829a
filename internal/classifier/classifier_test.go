package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertedTable_Matches(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		expected  string
	}{
		{
			name:      "schema qualified",
			statement: "INSERT INTO db.users VALUES (1, 'a')",
			expected:  "users",
		},
		{
			name:      "ignore without into",
			statement: "INSERT IGNORE users VALUES (1, 'a')",
			expected:  "users",
		},
		{
			name:      "backtick quoted",
			statement: "INSERT INTO `users` (id, name) VALUES (1, 'a')",
			expected:  "users",
		},
		{
			name:      "ignore into quoted and qualified",
			statement: "INSERT IGNORE INTO `app`.`users` VALUES (1)",
			expected:  "users",
		},
		{
			name:      "double quoted qualified",
			statement: `INSERT INTO "public"."users" VALUES (1)`,
			expected:  "users",
		},
		{
			name:      "no space before quoted table",
			statement: "INSERT INTO`users`(id) VALUES (1)",
			expected:  "users",
		},
		{
			name:      "column list without space",
			statement: "INSERT INTO orders(id) VALUES (1)",
			expected:  "orders",
		},
		{
			name:      "lowercase with leading whitespace",
			statement: "   insert into order_items (id) values (1)",
			expected:  "order_items",
		},
		{
			name:      "multi-line formatting",
			statement: "\n\tINSERT\nINTO\n  payments\nVALUES (1)",
			expected:  "payments",
		},
		{
			name:      "insert select",
			statement: "INSERT INTO archive.orders SELECT * FROM orders",
			expected:  "orders",
		},
		{
			name:      "without into",
			statement: "INSERT users (id) VALUES (1)",
			expected:  "users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, ok := InsertedTable(tt.statement)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, table)
		})
	}
}

func TestInsertedTable_NoMatch(t *testing.T) {
	statements := []string{
		"",
		"   ",
		"SELECT * FROM users",
		"UPDATE users SET name = 'a'",
		"DELETE FROM users",
		"CREATE TABLE users (id INT)",
		"REPLACE INTO users VALUES (1)",
		"-- INSERT INTO users VALUES (1)",
		"/* comment */ INSERT INTO users VALUES (1)",
		"INSERTINTO users VALUES (1)",
		"INSERT",
		"INSERT INTO (",
		"SELECT 'INSERT INTO users'",
	}

	for _, statement := range statements {
		t.Run(statement, func(t *testing.T) {
			table, ok := InsertedTable(statement)
			assert.False(t, ok)
			assert.Empty(t, table)
		})
	}
}

func TestClassify_Batch(t *testing.T) {
	sql := "INSERT INTO users VALUES (1); UPDATE users SET a = 1;INSERT IGNORE INTO `orders` VALUES (2);SELECT 1;"

	assert.Equal(t, []string{"users", "orders"}, Classify(sql))
}

func TestClassify_KeepsDuplicates(t *testing.T) {
	sql := "INSERT INTO users VALUES (1);INSERT INTO users VALUES (2)"

	assert.Equal(t, []string{"users", "users"}, Classify(sql))
}

func TestClassify_NoInserts(t *testing.T) {
	assert.Empty(t, Classify("SELECT 1; SET FOREIGN_KEY_CHECKS = 0;"))
	assert.Empty(t, Classify(""))
}
