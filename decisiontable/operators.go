package decisiontable

import (
	"errors"
	"fmt"
	"strings"
)

// Operator tokens, as stored in table definitions. The vocabulary is fixed:
// conditions never carry expressions, only one of these named comparisons.
const (
	OpEqual          = "is equal to"
	OpNotEqual       = "is not equal to"
	OpGreaterThan    = "is greater than"
	OpLessThan       = "is less than"
	OpGreaterOrEqual = "is greater than or equal to"
	OpLessOrEqual    = "is less than or equal to"
	OpExists         = "exists"
	OpNotExists      = "does not exist"
	OpEmpty          = "is empty"
	OpNotEmpty       = "is not empty"
	OpContains       = "contains"
	OpNotContains    = "does not contain"
	OpTrue           = "is true"
	OpFalse          = "is false"
)

// ErrUnsupportedOperator is returned when an operator token is not part of
// the vocabulary for the column's declared kind.
var ErrUnsupportedOperator = errors.New("unsupported operator")

var operatorsByKind = map[Kind][]string{
	KindNumber: {
		OpEqual, OpNotEqual,
		OpGreaterThan, OpLessThan,
		OpGreaterOrEqual, OpLessOrEqual,
	},
	KindString: {
		OpExists, OpNotExists,
		OpEmpty, OpNotEmpty,
		OpEqual, OpNotEqual,
		OpContains, OpNotContains,
	},
	KindBoolean: {
		OpTrue, OpFalse,
		OpEqual, OpNotEqual,
	},
}

// OperatorSupported reports whether op is legal for columns of the given
// kind. The registry consults this at registration time so that the
// evaluation hot path never sees an out-of-vocabulary operator.
func OperatorSupported(kind Kind, op string) bool {
	for _, known := range operatorsByKind[kind] {
		if known == op {
			return true
		}
	}
	return false
}

// Operators returns the operator vocabulary for a kind, in declaration
// order. Used by the API layer to describe legal operators to the builder.
func Operators(kind Kind) []string {
	ops := operatorsByKind[kind]
	out := make([]string, len(ops))
	copy(out, ops)
	return out
}

// CompareNumber applies a numeric operator. Comparison is exact float64
// comparison, no epsilon.
func CompareNumber(op string, comparand, actual float64) (bool, error) {
	switch op {
	case OpEqual:
		return actual == comparand, nil
	case OpNotEqual:
		return actual != comparand, nil
	case OpGreaterThan:
		return actual > comparand, nil
	case OpLessThan:
		return actual < comparand, nil
	case OpGreaterOrEqual:
		return actual >= comparand, nil
	case OpLessOrEqual:
		return actual <= comparand, nil
	}
	return false, fmt.Errorf("%w: %q for number", ErrUnsupportedOperator, op)
}

// CompareString applies a string operator. The present flag tells the
// presence operators whether the input key was supplied at all; an absent
// input counts as empty for the emptiness operators. contains is a
// case-sensitive substring test.
func CompareString(op string, comparand, actual string, present bool) (bool, error) {
	switch op {
	case OpExists:
		return present, nil
	case OpNotExists:
		return !present, nil
	case OpEmpty:
		return !present || actual == "", nil
	case OpNotEmpty:
		return present && actual != "", nil
	case OpEqual:
		return actual == comparand, nil
	case OpNotEqual:
		return actual != comparand, nil
	case OpContains:
		return strings.Contains(actual, comparand), nil
	case OpNotContains:
		return !strings.Contains(actual, comparand), nil
	}
	return false, fmt.Errorf("%w: %q for string", ErrUnsupportedOperator, op)
}

// CompareBoolean applies a boolean operator.
func CompareBoolean(op string, comparand, actual bool) (bool, error) {
	switch op {
	case OpTrue:
		return actual, nil
	case OpFalse:
		return !actual, nil
	case OpEqual:
		return actual == comparand, nil
	case OpNotEqual:
		return actual != comparand, nil
	}
	return false, fmt.Errorf("%w: %q for boolean", ErrUnsupportedOperator, op)
}

// operatorNeedsValue reports whether op needs an actual input value to
// decide. Presence and emptiness checks are excluded: they are defined for
// absent inputs as well.
func operatorNeedsValue(op string) bool {
	switch op {
	case OpExists, OpNotExists, OpEmpty, OpNotEmpty:
		return false
	}
	return true
}

// operatorTakesComparand reports whether op compares the input against a
// stored comparand. is true and is false read only the actual value, and
// the presence and emptiness checks read neither.
func operatorTakesComparand(op string) bool {
	switch op {
	case OpExists, OpNotExists, OpEmpty, OpNotEmpty, OpTrue, OpFalse:
		return false
	}
	return true
}
