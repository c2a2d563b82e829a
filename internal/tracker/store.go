package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dbsmedya/gorewinder/internal/types"
)

// RecordSuffix ends the file name of every tracker record.
const RecordSuffix = ".inserted_tables"

const tempSuffix = ".tmp"

// Store reads and writes tracker records in one directory.
// Record names follow <root-pid>.<pid>.inserted_tables.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a store over fs rooted at dir.
// A nil fs selects the OS filesystem and an empty dir the system temp dir.
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{fs: fs, dir: dir}
}

// NewStoreFromEnv creates a store over fs in the directory published by
// the root process, or the system temp dir.
func NewStoreFromEnv(fs afero.Fs) *Store {
	return NewStore(fs, os.Getenv(TrackingDirEnv))
}

// Dir returns the record directory.
func (s *Store) Dir() string {
	return s.dir
}

// RecordPath returns the record file of pid under rootPID.
func (s *Store) RecordPath(rootPID, pid int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.%d%s", rootPID, pid, RecordSuffix))
}

// Write replaces the record of pid with tables, one name per line.
// The content goes to a temporary file first and is renamed into place so
// readers never observe a partial record.
func (s *Store) Write(rootPID, pid int, tables *types.TableSet) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	path := s.RecordPath(rootPID, pid)
	tmp := path + tempSuffix

	var b strings.Builder
	for _, name := range tables.Names() {
		b.WriteString(name)
		b.WriteByte('\n')
	}

	if err := afero.WriteFile(s.fs, tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to publish record %s: %w", path, err)
	}
	return nil
}

// Read parses one record, one table name per line. Names are taken
// verbatim, so a quoted name containing a comma stays a single table.
func (s *Store) Read(path string) (*types.TableSet, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}

	tables := types.NewTableSet()
	for _, line := range strings.Split(string(data), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			tables.Add(name)
		}
	}
	return tables, nil
}

// Records lists the record files of rootPID in name order.
func (s *Store) Records(rootPID int) ([]string, error) {
	return s.glob(fmt.Sprintf("%d.*%s", rootPID, RecordSuffix))
}

// Purge removes every record of rootPID, including abandoned temporary
// files. Files that vanish concurrently are ignored. It returns the paths
// that were removed.
func (s *Store) Purge(rootPID int) ([]string, error) {
	records, err := s.Records(rootPID)
	if err != nil {
		return nil, err
	}
	temps, err := s.glob(fmt.Sprintf("%d.*%s%s", rootPID, RecordSuffix, tempSuffix))
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range append(records, temps...) {
		if err := s.fs.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove record %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func (s *Store) glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(s.fs, filepath.Join(s.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
