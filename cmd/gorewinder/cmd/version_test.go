package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommandStructure(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.Contains(t, versionCmd.Long, "adapters")
	assert.NotNil(t, versionCmd.Run)
}

func TestRunVersion(t *testing.T) {
	originalVersion := Version
	originalCommit := Commit
	defer func() {
		Version = originalVersion
		Commit = originalCommit
	}()

	Version = "1.2.3"
	Commit = "abc123"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	runVersion(versionCmd, []string{})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "gorewinder 1.2.3 (abc123) "+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH, lines[0])
	assert.Equal(t, "  Adapters: mysql, sqlx, gorm", lines[1])
	assert.Equal(t, "  Records:  <root-pid>.<pid>.inserted_tables", lines[2])
	assert.Equal(t, "  Env:      GOREWINDER_ROOT_PID, GOREWINDER_TRACKING_DIR, GOREWINDER_ADDR", lines[3])
}
