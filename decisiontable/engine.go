package decisiontable

import (
	"errors"
	"fmt"
)

// Engine ties a definition store to a registry and exposes the evaluation
// entry point used by the HTTP layer. Definitions compile lazily on first
// evaluation and stay cached until mutated or evicted.
type Engine struct {
	store     DefinitionStore
	registry  *Registry
	evaluator *Evaluator
}

// NewEngine creates an engine over store with a fresh registry.
func NewEngine(store DefinitionStore) *Engine {
	registry := NewRegistry()
	return &Engine{
		store:     store,
		registry:  registry,
		evaluator: NewEvaluator(registry),
	}
}

// Registry exposes the underlying registry, mainly for metrics.
func (en *Engine) Registry() *Registry {
	return en.registry
}

// Compiled returns the compiled form of tableID, loading the definition
// from the store and registering it on a registry miss. A store miss
// surfaces as ErrTableNotFound.
func (en *Engine) Compiled(tableID string) (*CompiledTable, error) {
	if ct, ok := en.registry.Lookup(tableID); ok {
		return ct, nil
	}

	def, err := en.store.Get(tableID)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading table %s: %w", tableID, err)
	}
	return en.registry.Register(tableID, def)
}

// Evaluate evaluates tableID against inputs, compiling and caching the
// definition on first use.
func (en *Engine) Evaluate(tableID string, inputs map[string]any) (*EvaluationResult, error) {
	if _, err := en.Compiled(tableID); err != nil {
		return nil, err
	}
	return en.evaluator.Evaluate(tableID, inputs)
}

// AddTable validates, compiles, and stores a new table. The definition is
// compiled before the store write so a malformed table never persists; if
// the store write fails the registry entry is rolled back.
func (en *Engine) AddTable(def *Definition) error {
	if _, err := en.store.Get(def.ID); err == nil {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	if _, err := en.registry.Register(def.ID, def); err != nil {
		return fmt.Errorf("table validation failed: %w", err)
	}

	if err := en.store.Add(def); err != nil {
		en.registry.Unregister(def.ID)
		return err
	}

	return nil
}

// UpdateTable validates the new definition and replaces both the stored
// and the cached copy. Evaluations in flight finish against the old
// compiled snapshot.
func (en *Engine) UpdateTable(def *Definition) error {
	if _, err := compileDefinition(def); err != nil {
		return fmt.Errorf("table validation failed: %w", err)
	}

	if err := en.store.Update(def); err != nil {
		return err
	}

	if _, err := en.registry.Register(def.ID, def); err != nil {
		return err
	}

	return nil
}

// DeleteTable removes the table from the store and evicts the compiled
// entry.
func (en *Engine) DeleteTable(tableID string) error {
	if err := en.store.Delete(tableID); err != nil {
		return err
	}

	en.registry.Unregister(tableID)
	return nil
}

// GetTable returns the stored definition for tableID.
func (en *Engine) GetTable(tableID string) (*Definition, error) {
	return en.store.Get(tableID)
}

// ListTables returns all stored definitions.
func (en *Engine) ListTables() ([]*Definition, error) {
	return en.store.List()
}
