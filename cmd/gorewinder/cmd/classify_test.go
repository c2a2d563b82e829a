package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCommandStructure(t *testing.T) {
	assert.Equal(t, "classify [sql...]", classifyCmd.Use)
	assert.NotEmpty(t, classifyCmd.Short)
	assert.Contains(t, classifyCmd.Long, "Example:")
	assert.NotNil(t, classifyCmd.RunE)
}

func TestRunClassify(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{
			name: "arguments",
			args: []string{"INSERT INTO users (name) VALUES ('a')", "SELECT 1", "insert ignore into `app`.`orders` values (1)"},
			want: "users\norders\n",
		},
		{
			name:  "stdin batch",
			stdin: "INSERT INTO orders VALUES (1); UPDATE users SET a = 1; INSERT INTO orders VALUES (2)\n",
			want:  "orders\norders\n",
		},
		{
			name:  "no inserts",
			stdin: "DELETE FROM users",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			classifyCmd.SetOut(&out)
			classifyCmd.SetIn(strings.NewReader(tt.stdin))
			defer func() {
				classifyCmd.SetOut(nil)
				classifyCmd.SetIn(nil)
			}()

			require.NoError(t, runClassify(classifyCmd, tt.args))
			assert.Equal(t, tt.want, out.String())
		})
	}
}
