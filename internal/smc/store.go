package smc

import (
	"sort"
	"sync"
	"time"
)

// Store holds the latest analysis per symbol. Reads and writes hand out deep
// copies so no caller shares state with the store.
type Store struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		analyses: make(map[string]*Analysis),
	}
}

// Put replaces the stored analysis for a.Symbol
func (s *Store) Put(a *Analysis) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.Symbol] = a.Clone()
}

// Get returns a copy of the latest analysis for symbol
func (s *Store) Get(symbol string) (*Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[symbol]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Update applies fn to the stored analysis under the write lock
func (s *Store) Update(symbol string, fn func(a *Analysis)) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.analyses[symbol]
	if !ok {
		return nil, false
	}
	fn(a)
	return a.Clone(), true
}

// Symbols returns the tracked symbols in sorted order
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.analyses))
	for sym := range s.analyses {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of tracked symbols
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}

// Delete removes a symbol, reporting whether it was present
func (s *Store) Delete(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analyses[symbol]; !ok {
		return false
	}
	delete(s.analyses, symbol)
	return true
}

// EvictBefore removes symbols whose latest analysis is older than cutoff
func (s *Store) EvictBefore(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for sym, a := range s.analyses {
		if a.Timestamp.Before(cutoff) {
			delete(s.analyses, sym)
			evicted = append(evicted, sym)
		}
	}
	sort.Strings(evicted)
	return evicted
}
