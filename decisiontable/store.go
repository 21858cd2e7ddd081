package decisiontable

import (
	"fmt"
	"sync"
	"time"
)

// DefinitionStore is the persistence boundary for table definitions. The
// engine only ever reads definitions through this interface; the table
// builder writes through it.
type DefinitionStore interface {
	// Add a new definition
	Add(def *Definition) error

	// Get a definition by table ID
	Get(id string) (*Definition, error)

	// List all definitions
	List() ([]*Definition, error)

	// Update an existing definition
	Update(def *Definition) error

	// Delete a definition
	Delete(id string) error
}

// InMemoryDefinitionStore implements DefinitionStore with a map. Used in
// tests and single-process deployments without a database.
type InMemoryDefinitionStore struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewInMemoryDefinitionStore creates an empty in-memory store.
func NewInMemoryDefinitionStore() *InMemoryDefinitionStore {
	return &InMemoryDefinitionStore{
		defs: make(map[string]*Definition),
	}
}

// Add stores a new definition, enforcing unique table IDs.
func (s *InMemoryDefinitionStore) Add(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID]; exists {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	s.defs[def.ID] = def
	return nil
}

// Get retrieves a definition by table ID.
func (s *InMemoryDefinitionStore) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return nil, fmt.Errorf("table %s: %w", id, ErrTableNotFound)
	}
	return def, nil
}

// List returns all stored definitions.
func (s *InMemoryDefinitionStore) List() ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*Definition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	return defs, nil
}

// Update replaces an existing definition, preserving CreatedAt.
func (s *InMemoryDefinitionStore) Update(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.defs[def.ID]
	if !exists {
		return fmt.Errorf("table %s: %w", def.ID, ErrTableNotFound)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	s.defs[def.ID] = def
	return nil
}

// Delete removes a definition.
func (s *InMemoryDefinitionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[id]; !exists {
		return fmt.Errorf("table %s: %w", id, ErrTableNotFound)
	}

	delete(s.defs, id)
	return nil
}
