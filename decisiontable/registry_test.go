package decisiontable

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func ageTable(id string) *Definition {
	return &Definition{
		ID:   id,
		Name: "Age Check",
		Inputs: []InputColumn{
			{Name: "age", Kind: KindNumber},
		},
		Outputs: []OutputColumn{
			{Name: "status", Kind: KindString},
		},
		Rows: []Row{
			{
				Kind:  RowNormal,
				Order: 1,
				Conditions: []Condition{
					{Column: "age", Operator: OpGreaterOrEqual, Comparand: "18"},
				},
				Results: []OutputResult{
					{Column: "status", Value: "adult"},
				},
			},
			{
				Kind: RowDefault,
				Results: []OutputResult{
					{Column: "status", Value: "minor"},
				},
			},
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	registry := NewRegistry()

	ct, err := registry.Register("t1", ageTable("t1"))
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if ct == nil {
		t.Fatal("Register() should return a compiled table")
	}

	got, ok := registry.Lookup("t1")
	if !ok {
		t.Fatal("Lookup() should hit after Register()")
	}
	if got != ct {
		t.Error("Lookup() should return the registered compiled table")
	}
}

func TestRegistryLookupMiss(t *testing.T) {
	registry := NewRegistry()

	if _, ok := registry.Lookup("never-registered"); ok {
		t.Error("Lookup() should miss for unknown table id")
	}
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.Register("t1", ageTable("t1")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	registry.Unregister("t1")

	if _, ok := registry.Lookup("t1"); ok {
		t.Error("Lookup() should miss after Unregister()")
	}
}

func TestRegistryReplaceOnReregister(t *testing.T) {
	registry := NewRegistry()
	evaluator := NewEvaluator(registry)

	// Row A: always matches, emits "A".
	defA := &Definition{
		ID:      "t1",
		Name:    "Replace Test",
		Outputs: []OutputColumn{{Name: "which", Kind: KindString}},
		Rows: []Row{
			{Kind: RowNormal, Order: 1, Results: []OutputResult{{Column: "which", Value: "A"}}},
		},
	}
	if _, err := registry.Register("t1", defA); err != nil {
		t.Fatalf("Register(defA) failed: %v", err)
	}

	defB := &Definition{
		ID:      "t1",
		Name:    "Replace Test",
		Outputs: []OutputColumn{{Name: "which", Kind: KindString}},
		Rows: []Row{
			{Kind: RowNormal, Order: 1, Results: []OutputResult{{Column: "which", Value: "B"}}},
		},
	}
	if _, err := registry.Register("t1", defB); err != nil {
		t.Fatalf("Register(defB) failed: %v", err)
	}

	result, err := evaluator.Evaluate("t1", map[string]any{})
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Outputs["which"] != "B" {
		t.Errorf("after re-registration Outputs[which] = %v, want B (replace, not append)", result.Outputs["which"])
	}
}

func TestRegistryValidationFailureLeavesCacheUntouched(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.Register("t1", ageTable("t1")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	previous, _ := registry.Lookup("t1")

	bad := ageTable("t1")
	bad.Rows[0].Conditions[0].Column = "undeclared"

	_, err := registry.Register("t1", bad)
	if err == nil {
		t.Fatal("Register() with undeclared column should fail")
	}

	current, ok := registry.Lookup("t1")
	if !ok {
		t.Fatal("previous entry should survive a failed re-registration")
	}
	if current != previous {
		t.Error("failed registration must not mutate the cached entry")
	}
}

func TestRegisterRejectsUndeclaredConditionColumn(t *testing.T) {
	registry := NewRegistry()

	def := ageTable("t1")
	def.Rows[0].Conditions[0].Column = "income"

	_, err := registry.Register("t1", def)
	if err == nil {
		t.Fatal("Register() should reject a condition referencing an undeclared column")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error should be a *ValidationError, got %T", err)
	}
	if verr.Column != "income" {
		t.Errorf("ValidationError.Column = %q, want %q", verr.Column, "income")
	}
	if !strings.Contains(err.Error(), "income") {
		t.Errorf("error message should name the offending column: %v", err)
	}
}

func TestRegisterRejectsUndeclaredResultColumn(t *testing.T) {
	registry := NewRegistry()

	def := ageTable("t1")
	def.Rows[0].Results[0].Column = "rate"

	_, err := registry.Register("t1", def)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() should return *ValidationError, got %v", err)
	}
	if verr.Column != "rate" {
		t.Errorf("ValidationError.Column = %q, want %q", verr.Column, "rate")
	}
}

func TestRegisterRejectsDuplicateColumnNames(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"duplicate input", func(d *Definition) {
			d.Inputs = append(d.Inputs, InputColumn{Name: "age", Kind: KindString})
		}},
		{"duplicate output", func(d *Definition) {
			d.Outputs = append(d.Outputs, OutputColumn{Name: "status", Kind: KindNumber})
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := ageTable("t1")
			tc.mutate(def)

			_, err := NewRegistry().Register("t1", def)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Register() should return *ValidationError, got %v", err)
			}
		})
	}
}

func TestRegisterRejectsIllegalOperatorForKind(t *testing.T) {
	def := ageTable("t1")
	def.Rows[0].Conditions[0].Operator = OpContains // string operator on a number column

	_, err := NewRegistry().Register("t1", def)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() should return *ValidationError, got %v", err)
	}
	if verr.Operator != OpContains {
		t.Errorf("ValidationError.Operator = %q, want %q", verr.Operator, OpContains)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	evaluator := NewEvaluator(registry)

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		if _, err := registry.Register(id, ageTable(id)); err != nil {
			t.Fatalf("Register(%s) failed: %v", id, err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%10)
			for j := 0; j < 100; j++ {
				if _, err := evaluator.Evaluate(id, map[string]any{"age": float64(j)}); err != nil {
					t.Errorf("Evaluate(%s) failed: %v", id, err)
					return
				}
			}
		}(i)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%10)
			for j := 0; j < 20; j++ {
				if _, err := registry.Register(id, ageTable(id)); err != nil {
					t.Errorf("Register(%s) failed: %v", id, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
