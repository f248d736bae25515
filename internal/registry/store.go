// Package registry keeps the named connection strings an appender can refer
// to by name instead of embedding a URI in its own settings.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// Entry is one named connection string.
type Entry struct {
	Name             string `json:"name" mapstructure:"name"`
	ConnectionString string `json:"connection_string" mapstructure:"connection_string"`
}

// Store holds named connection strings. It is safe for concurrent use so
// entries can be replaced while appenders resolve against it.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewStore creates a store seeded with entries.
func NewStore(entries map[string]string) *Store {
	s := &Store{
		entries: make(map[string]string, len(entries)),
	}
	for name, cs := range entries {
		s.entries[name] = cs
	}
	return s
}

// Set adds or replaces a named entry.
func (s *Store) Set(name, connectionString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = connectionString
}

// Remove deletes a named entry and reports whether it existed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	return true
}

// Lookup returns the connection string registered under name. Blank values
// count as missing.
func (s *Store) Lookup(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.entries[name]
	if !ok || strings.TrimSpace(cs) == "" {
		return "", false
	}
	return cs, true
}

// List returns all entries sorted by name.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]Entry, 0, len(s.entries))
	for name, cs := range s.entries {
		list = append(list, Entry{Name: name, ConnectionString: cs})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
