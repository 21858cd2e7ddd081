package decisiontable

import "sync"

// Registry caches compiled tables keyed by table identifier. Compilation
// happens outside the lock; publication is a pointer swap under a short
// critical section, so readers of other tables never wait on a writer and
// an in-flight evaluation keeps the snapshot it looked up.
type Registry struct {
	tables map[string]*CompiledTable
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry. Production wiring holds one
// long-lived registry per process; tests construct their own.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*CompiledTable),
	}
}

// Register validates and compiles def and caches the result under tableID,
// atomically replacing any prior entry. On a *ValidationError the cache is
// untouched and the previous entry, if any, stays authoritative.
func (r *Registry) Register(tableID string, def *Definition) (*CompiledTable, error) {
	compiled, err := compileDefinition(def)
	if err != nil {
		return nil, err
	}
	compiled.ID = tableID

	r.mu.Lock()
	r.tables[tableID] = compiled
	r.mu.Unlock()

	return compiled, nil
}

// Lookup returns the cached compiled table for tableID, if any.
func (r *Registry) Lookup(tableID string) (*CompiledTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ct, ok := r.tables[tableID]
	return ct, ok
}

// Unregister evicts tableID from the cache. Subsequent lookups miss until
// the table is registered again.
func (r *Registry) Unregister(tableID string) {
	r.mu.Lock()
	delete(r.tables, tableID)
	r.mu.Unlock()
}

// Len returns the number of cached tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
