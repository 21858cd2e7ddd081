package decisiontable

import (
	"fmt"
	"sort"
	"strconv"
)

// ValidationError describes a structural problem found at registration
// time. It names the offending column, operator, or row so the table
// builder can point at the exact cell.
type ValidationError struct {
	TableID  string
	Row      int // -1 when the problem is column-level
	Column   string
	Operator string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("table %s row %d: %s", e.TableID, e.Row, e.Reason)
	}
	return fmt.Sprintf("table %s: %s", e.TableID, e.Reason)
}

// CompiledTable is the immutable, evaluation-ready form of a Definition.
// Rows are partitioned and sorted once; comparands and result literals are
// pre-parsed to their column kinds. Evaluations hold a shared read
// reference and never mutate it.
type CompiledTable struct {
	ID      string
	Name    string
	Inputs  []InputColumn
	Outputs []OutputColumn

	NormalRows  []compiledRow
	DefaultRows []compiledRow

	inputKinds map[string]Kind
}

// DeclaredInput reports whether name is one of the table's input columns.
func (t *CompiledTable) DeclaredInput(name string) bool {
	_, ok := t.inputKinds[name]
	return ok
}

type compiledRow struct {
	Order      int
	Conditions []compiledCondition
	Results    []compiledResult
}

type compiledCondition struct {
	Column    string
	Kind      Kind
	Operator  string
	Comparand string

	// Pre-parsed comparand for number and boolean columns. parsedOK is
	// false when the stored comparand does not parse; such a condition can
	// never match but does not fail registration.
	numComparand  float64
	boolComparand bool
	parsedOK      bool
}

type compiledResult struct {
	Column string
	Value  any
}

// compileDefinition validates def and produces its compiled form. It is
// called by the registry outside any lock; a returned *ValidationError
// means the cache must stay untouched.
func compileDefinition(def *Definition) (*CompiledTable, error) {
	inputKinds := make(map[string]Kind, len(def.Inputs))
	for _, col := range def.Inputs {
		if !col.Kind.IsValid() {
			return nil, &ValidationError{
				TableID: def.ID, Row: -1, Column: col.Name,
				Reason: fmt.Sprintf("input column %q has unknown kind %q", col.Name, col.Kind),
			}
		}
		if _, dup := inputKinds[col.Name]; dup {
			return nil, &ValidationError{
				TableID: def.ID, Row: -1, Column: col.Name,
				Reason: fmt.Sprintf("duplicate input column %q", col.Name),
			}
		}
		inputKinds[col.Name] = col.Kind
	}

	outputKinds := make(map[string]Kind, len(def.Outputs))
	for _, col := range def.Outputs {
		if !col.Kind.IsValid() {
			return nil, &ValidationError{
				TableID: def.ID, Row: -1, Column: col.Name,
				Reason: fmt.Sprintf("output column %q has unknown kind %q", col.Name, col.Kind),
			}
		}
		if _, dup := outputKinds[col.Name]; dup {
			return nil, &ValidationError{
				TableID: def.ID, Row: -1, Column: col.Name,
				Reason: fmt.Sprintf("duplicate output column %q", col.Name),
			}
		}
		outputKinds[col.Name] = col.Kind
	}

	ct := &CompiledTable{
		ID:         def.ID,
		Name:       def.Name,
		Inputs:     append([]InputColumn(nil), def.Inputs...),
		Outputs:    append([]OutputColumn(nil), def.Outputs...),
		inputKinds: inputKinds,
	}

	for i, row := range def.Rows {
		cr := compiledRow{Order: row.Order}

		for _, cond := range row.Conditions {
			kind, ok := inputKinds[cond.Column]
			if !ok {
				return nil, &ValidationError{
					TableID: def.ID, Row: i, Column: cond.Column, Operator: cond.Operator,
					Reason: fmt.Sprintf("condition references undeclared input column %q", cond.Column),
				}
			}
			if !OperatorSupported(kind, cond.Operator) {
				return nil, &ValidationError{
					TableID: def.ID, Row: i, Column: cond.Column, Operator: cond.Operator,
					Reason: fmt.Sprintf("operator %q is not supported for %s column %q", cond.Operator, kind, cond.Column),
				}
			}
			cr.Conditions = append(cr.Conditions, compileCondition(cond, kind))
		}

		for _, res := range row.Results {
			kind, ok := outputKinds[res.Column]
			if !ok {
				return nil, &ValidationError{
					TableID: def.ID, Row: i, Column: res.Column,
					Reason: fmt.Sprintf("result references undeclared output column %q", res.Column),
				}
			}
			cr.Results = append(cr.Results, compiledResult{
				Column: res.Column,
				Value:  parseResultValue(kind, res.Value),
			})
		}

		switch row.Kind {
		case RowDefault:
			ct.DefaultRows = append(ct.DefaultRows, cr)
		default:
			ct.NormalRows = append(ct.NormalRows, cr)
		}
	}

	// Ascending order, stable so equal orders keep definition order.
	sort.SliceStable(ct.NormalRows, func(a, b int) bool {
		return ct.NormalRows[a].Order < ct.NormalRows[b].Order
	})
	sort.SliceStable(ct.DefaultRows, func(a, b int) bool {
		return ct.DefaultRows[a].Order < ct.DefaultRows[b].Order
	})

	return ct, nil
}

func compileCondition(cond Condition, kind Kind) compiledCondition {
	cc := compiledCondition{
		Column:    cond.Column,
		Kind:      kind,
		Operator:  cond.Operator,
		Comparand: cond.Comparand,
		parsedOK:  true,
	}

	if !operatorTakesComparand(cond.Operator) {
		// Presence, emptiness, and the bare boolean checks ignore the
		// comparand entirely.
		return cc
	}

	switch kind {
	case KindNumber:
		n, err := strconv.ParseFloat(cond.Comparand, 64)
		if err != nil {
			cc.parsedOK = false
			return cc
		}
		cc.numComparand = n
	case KindBoolean:
		b, err := strconv.ParseBool(cond.Comparand)
		if err != nil {
			cc.parsedOK = false
			return cc
		}
		cc.boolComparand = b
	}
	return cc
}

// parseResultValue converts a stored result literal to the output column's
// declared kind. A literal that does not parse is emitted as its raw string
// rather than failing the table.
func parseResultValue(kind Kind, raw string) any {
	switch kind {
	case KindNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case KindBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// coerceString converts a caller-supplied raw value to a string operand.
func coerceString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

// coerceNumber converts a caller-supplied raw value to a float64 operand.
// JSON decoding yields float64 for all numbers; strings are parsed so that
// callers sending numeric strings still match.
func coerceNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(val, 64)
		return n, err == nil
	}
	return 0, false
}

// coerceBoolean converts a caller-supplied raw value to a bool operand.
func coerceBoolean(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(val)
		return b, err == nil
	}
	return false, false
}
