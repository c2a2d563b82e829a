// Package types holds the value types shared between the tracker, the
// cleaners and the orchestrator.
package types

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// TableSet is a set of table names that remembers first-insertion order.
// Ordering keeps log lines and DELETE batches deterministic across runs.
// The zero value is not usable; use NewTableSet.
type TableSet struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

// NewTableSet creates a set holding the given names. Duplicates collapse.
func NewTableSet(names ...string) *TableSet {
	s := &TableSet{m: orderedmap.NewOrderedMap[string, struct{}]()}
	s.Add(names...)
	return s
}

// Add inserts names, skipping empty strings. It reports how many names were new.
func (s *TableSet) Add(names ...string) int {
	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if s.m.Set(name, struct{}{}) {
			added++
		}
	}
	return added
}

// Has reports whether name is in the set.
func (s *TableSet) Has(name string) bool {
	_, ok := s.m.Get(name)
	return ok
}

// Len returns the number of tables in the set.
func (s *TableSet) Len() int {
	return s.m.Len()
}

// IsEmpty reports whether the set holds no tables.
func (s *TableSet) IsEmpty() bool {
	return s.m.Len() == 0
}

// Names returns the tables in insertion order.
func (s *TableSet) Names() []string {
	return s.m.Keys()
}

// Union adds every table of other to s and returns s.
func (s *TableSet) Union(other *TableSet) *TableSet {
	if other == nil {
		return s
	}
	s.Add(other.Names()...)
	return s
}

// Minus returns a new set with the tables of s that are not in other.
func (s *TableSet) Minus(other *TableSet) *TableSet {
	out := NewTableSet()
	for _, name := range s.Names() {
		if other != nil && other.Has(name) {
			continue
		}
		out.Add(name)
	}
	return out
}

// Intersect returns a new set with the tables of s that are also in other.
// The order of s is kept.
func (s *TableSet) Intersect(other *TableSet) *TableSet {
	out := NewTableSet()
	if other == nil {
		return out
	}
	for _, name := range s.Names() {
		if other.Has(name) {
			out.Add(name)
		}
	}
	return out
}

// Clone returns an independent copy of s.
func (s *TableSet) Clone() *TableSet {
	return &TableSet{m: s.m.Copy()}
}

// String joins the tables with ", " for log output.
func (s *TableSet) String() string {
	return strings.Join(s.Names(), ", ")
}
