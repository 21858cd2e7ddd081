package decisiontable

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineLazyCompileOnFirstEvaluate(t *testing.T) {
	store := NewInMemoryDefinitionStore()
	if err := store.Add(ageTable("t1")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	engine := NewEngine(store)

	if _, ok := engine.Registry().Lookup("t1"); ok {
		t.Fatal("registry should be empty before the first evaluation")
	}

	result, err := engine.Evaluate("t1", map[string]any{"age": 21.0})
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Outputs["status"] != "adult" {
		t.Errorf("Outputs[status] = %v, want adult", result.Outputs["status"])
	}

	if _, ok := engine.Registry().Lookup("t1"); !ok {
		t.Error("first evaluation should compile and cache the table")
	}
}

func TestEngineEvaluateUnknownTable(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	_, err := engine.Evaluate("missing", map[string]any{})
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Evaluate() error = %v, want ErrTableNotFound", err)
	}
}

func TestEngineAddTable(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	if err := engine.AddTable(ageTable("t1")); err != nil {
		t.Fatalf("AddTable() failed: %v", err)
	}

	if _, ok := engine.Registry().Lookup("t1"); !ok {
		t.Error("AddTable() should compile and cache the table")
	}

	if err := engine.AddTable(ageTable("t1")); err == nil {
		t.Error("AddTable() with an existing ID should fail")
	}
}

func TestEngineAddTableRejectsInvalidDefinition(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	def := ageTable("t1")
	def.Rows[0].Conditions[0].Operator = "resembles"

	err := engine.AddTable(def)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("AddTable() error = %v, want *ValidationError", err)
	}

	// Nothing may persist or stay cached on a failed add.
	if _, err := engine.GetTable("t1"); err == nil {
		t.Error("invalid table must not reach the store")
	}
	if _, ok := engine.Registry().Lookup("t1"); ok {
		t.Error("invalid table must not stay in the registry")
	}
}

type failingStore struct {
	*InMemoryDefinitionStore
}

func (s *failingStore) Add(def *Definition) error {
	return fmt.Errorf("store unavailable")
}

func TestEngineAddTableRollsBackRegistryOnStoreFailure(t *testing.T) {
	engine := NewEngine(&failingStore{NewInMemoryDefinitionStore()})

	if err := engine.AddTable(ageTable("t1")); err == nil {
		t.Fatal("AddTable() should surface the store failure")
	}
	if _, ok := engine.Registry().Lookup("t1"); ok {
		t.Error("registry entry should be rolled back when the store write fails")
	}
}

func TestEngineUpdateTableReplacesCompiledEntry(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	if err := engine.AddTable(ageTable("t1")); err != nil {
		t.Fatalf("AddTable() failed: %v", err)
	}

	updated := ageTable("t1")
	updated.Rows[0].Conditions[0].Comparand = "21"
	if err := engine.UpdateTable(updated); err != nil {
		t.Fatalf("UpdateTable() failed: %v", err)
	}

	result, err := engine.Evaluate("t1", map[string]any{"age": 19.0})
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Outputs["status"] != "minor" {
		t.Errorf("after raising the threshold, Outputs[status] = %v, want minor", result.Outputs["status"])
	}
}

func TestEngineUpdateTableValidatesBeforeStoring(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	if err := engine.AddTable(ageTable("t1")); err != nil {
		t.Fatalf("AddTable() failed: %v", err)
	}

	bad := ageTable("t1")
	bad.Rows[0].Conditions[0].Column = "undeclared"
	if err := engine.UpdateTable(bad); err == nil {
		t.Fatal("UpdateTable() with an invalid definition should fail")
	}

	// The previous version must still evaluate.
	result, err := engine.Evaluate("t1", map[string]any{"age": 30.0})
	if err != nil {
		t.Fatalf("Evaluate() after failed update failed: %v", err)
	}
	if result.Outputs["status"] != "adult" {
		t.Errorf("previous version should stay authoritative, got %v", result.Outputs)
	}
}

func TestEngineDeleteTableEvictsRegistry(t *testing.T) {
	engine := NewEngine(NewInMemoryDefinitionStore())

	if err := engine.AddTable(ageTable("t1")); err != nil {
		t.Fatalf("AddTable() failed: %v", err)
	}
	if err := engine.DeleteTable("t1"); err != nil {
		t.Fatalf("DeleteTable() failed: %v", err)
	}

	if _, ok := engine.Registry().Lookup("t1"); ok {
		t.Error("DeleteTable() should evict the compiled entry")
	}
	if _, err := engine.Evaluate("t1", map[string]any{}); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Evaluate() after delete error = %v, want ErrTableNotFound", err)
	}
}
