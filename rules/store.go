package rules

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// RuleStore manages rule definition persistence for one program.
type RuleStore interface {
	// Add a new definition
	Add(def *Definition) error

	// Get a definition by ID
	Get(id string) (*Definition, error)

	// List all definitions ordered by position
	List() ([]*Definition, error)

	// List active definitions ordered by position
	ListActive() ([]*Definition, error)

	// Update an existing definition
	Update(def *Definition) error

	// Delete a definition
	Delete(id string) error
}

// InMemoryRuleStore implements RuleStore using an in-memory map.
type InMemoryRuleStore struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewInMemoryRuleStore creates a new in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		defs: make(map[string]*Definition),
	}
}

// Add stores def and stamps CreatedAt and UpdatedAt.
func (s *InMemoryRuleStore) Add(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	s.defs[def.ID] = def
	return nil
}

func (s *InMemoryRuleStore) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return def, nil
}

func (s *InMemoryRuleStore) List() ([]*Definition, error) {
	return s.list(false), nil
}

func (s *InMemoryRuleStore) ListActive() ([]*Definition, error) {
	return s.list(true), nil
}

func (s *InMemoryRuleStore) list(activeOnly bool) []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Definition
	for _, def := range s.defs {
		if activeOnly && !def.Active {
			continue
		}
		out = append(out, def)
	}
	SortDefinitions(out)
	return out
}

// Update replaces a definition, keeping its CreatedAt.
func (s *InMemoryRuleStore) Update(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.defs[def.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, def.ID)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	s.defs[def.ID] = def
	return nil
}

func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	delete(s.defs, id)
	return nil
}

// SortDefinitions orders definitions by Position, then ID.
func SortDefinitions(defs []*Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Position != defs[j].Position {
			return defs[i].Position < defs[j].Position
		}
		return defs[i].ID < defs[j].ID
	})
}
