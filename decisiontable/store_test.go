package decisiontable

import (
	"errors"
	"testing"
)

func TestDefinitionStoreInterface(t *testing.T) {
	var _ DefinitionStore = (*InMemoryDefinitionStore)(nil)
	var _ DefinitionStore = (*PostgresDefinitionStore)(nil)
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	def := ageTable("t1")
	if err := store.Add(def); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if def.CreatedAt.IsZero() || def.UpdatedAt.IsZero() {
		t.Error("Add() should set CreatedAt and UpdatedAt")
	}

	got, err := store.Get("t1")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if got.Name != def.Name {
		t.Errorf("Get().Name = %q, want %q", got.Name, def.Name)
	}
}

func TestInMemoryStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	if err := store.Add(ageTable("t1")); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	if err := store.Add(ageTable("t1")); err == nil {
		t.Error("Add() with duplicate ID should fail")
	}
}

func TestInMemoryStoreGetMiss(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	_, err := store.Get("missing")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Get() error = %v, want ErrTableNotFound", err)
	}
}

func TestInMemoryStoreUpdate(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	original := ageTable("t1")
	if err := store.Add(original); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	updated := ageTable("t1")
	updated.Name = "Renamed"
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := store.Get("t1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Get().Name = %q, want Renamed", got.Name)
	}
	if !got.CreatedAt.Equal(original.CreatedAt) {
		t.Error("Update() should preserve CreatedAt")
	}
}

func TestInMemoryStoreUpdateMiss(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	err := store.Update(ageTable("missing"))
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Update() error = %v, want ErrTableNotFound", err)
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	if err := store.Add(ageTable("t1")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Delete("t1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := store.Get("t1"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrTableNotFound", err)
	}

	if err := store.Delete("t1"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("second Delete() error = %v, want ErrTableNotFound", err)
	}
}

func TestInMemoryStoreList(t *testing.T) {
	store := NewInMemoryDefinitionStore()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Add(ageTable(id)); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}

	defs, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(defs) != 3 {
		t.Errorf("List() returned %d definitions, want 3", len(defs))
	}
}
