// Package records is the in-memory items and events service the gateway is
// normally deployed in front of.
package records

import (
	"fmt"
	"sync"
)

// Record is the body of both items and events.
type Record struct {
	ID      *int    `json:"id" validate:"required"`
	Title   *string `json:"title" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

// String renders r for log lines, printing missing fields as zero values.
func (r Record) String() string {
	return fmt.Sprintf("id=%d title=%q content=%q", deref(r.ID), deref(r.Title), deref(r.Content))
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Store is an ordered list of records addressed by position.
type Store struct {
	mu      sync.RWMutex
	records []Record
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds r at the end.
func (s *Store) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// List returns a copy of all records in insertion order. It never returns nil.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Replace overwrites the record at idx. It reports false when idx is out of
// range.
func (s *Store) Replace(idx int, r Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.records) {
		return false
	}
	s.records[idx] = r
	return true
}

// Delete removes the record at idx, shifting later records down. It reports
// false when idx is out of range.
func (s *Store) Delete(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.records) {
		return false
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	return true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
