package decisiontable

import "time"

// Kind is the declared value kind of a column. Every condition and output
// result is interpreted according to its column's kind.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// IsValid reports whether k is one of the declared kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean:
		return true
	}
	return false
}

// RowKind distinguishes ordinary conditional rows from fallback rows.
type RowKind string

const (
	RowNormal  RowKind = "normal"
	RowDefault RowKind = "default"
)

// InputColumn declares a named, typed input. The kind decides which
// operators are legal in conditions referencing the column.
type InputColumn struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// VariableID references the separately stored variable used for
	// display in the table builder UI. Not consulted during matching.
	VariableID string `json:"variableId,omitempty"`
}

// OutputColumn declares a named, typed output produced on match.
type OutputColumn struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	VariableID string `json:"variableId,omitempty"`
}

// Condition constrains one input column within a row. Comparand is kept in
// raw string form and coerced to the column's kind when the table compiles.
type Condition struct {
	Column    string `json:"column"`
	Operator  string `json:"operator"`
	Comparand string `json:"comparand"`
}

// OutputResult carries the literal value a row emits for one output column.
// Values are opaque payload to the engine, never evaluated as expressions.
type OutputResult struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Row is a single rule. Normal rows carry conditions and compete by
// ascending Order; default rows are the fallback when nothing matched.
// A row may omit a condition for a column, meaning don't-care.
type Row struct {
	Kind       RowKind        `json:"kind"`
	Order      int            `json:"order"`
	Conditions []Condition    `json:"conditions"`
	Results    []OutputResult `json:"results"`
}

// Definition is the raw, storable form of a decision table, as assembled by
// the table builder and handed to the registry for compilation.
type Definition struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Inputs  []InputColumn  `json:"inputs"`
	Outputs []OutputColumn `json:"outputs"`
	Rows    []Row          `json:"rows"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// EvaluationResult is the outcome of evaluating one table against one input
// map. Matched is false for the explicit no-match outcome, in which case
// Outputs is nil and Inputs carries the caller's input snapshot for logging.
type EvaluationResult struct {
	TableID   string         `json:"tableId"`
	TableName string         `json:"tableName"`
	Matched   bool           `json:"matched"`
	Default   bool           `json:"default,omitempty"` // true when the fallback row produced the outputs
	Outputs   map[string]any `json:"outputs,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
}
