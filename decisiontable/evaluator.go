package decisiontable

import (
	"errors"
	"fmt"

	"github.com/hivemindhq/decision-engine/internal/logger"
)

// ErrTableNotFound is returned when an evaluation names a table identifier
// the registry has never seen (or has evicted).
var ErrTableNotFound = errors.New("decision table not found")

// ErrEvaluationFailed is returned only when every considered row errored,
// which can happen only if registration-time validation was bypassed.
var ErrEvaluationFailed = errors.New("evaluation failed")

// Evaluator walks compiled tables row by row. It holds only a registry
// reference and per-call state, so any number of evaluations may run
// concurrently.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator over registry.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate resolves tableID in the registry and returns the first matching
// normal row's outputs, the first default row's outputs when no normal row
// matched, or the explicit no-match outcome.
//
// Missing or uncoercible input values make the individual condition false
// rather than failing the call: structural strictness lives at registration
// time, the hot path absorbs caller data-shape problems.
func (ev *Evaluator) Evaluate(tableID string, inputs map[string]any) (*EvaluationResult, error) {
	ct, ok := ev.registry.Lookup(tableID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return evaluateCompiled(ct, inputs)
}

func evaluateCompiled(ct *CompiledTable, inputs map[string]any) (*EvaluationResult, error) {
	considered := 0
	errored := 0

	for i := range ct.NormalRows {
		row := &ct.NormalRows[i]
		considered++

		matched, err := rowMatches(row, inputs)
		if err != nil {
			// Fail-soft at the row level: skip the row, keep going.
			logger.WarnSkippedRow(ct.ID, row.Order, err)
			errored++
			continue
		}
		if matched {
			return matchResult(ct, row, false), nil
		}
	}

	if len(ct.DefaultRows) > 0 {
		// Lowest order wins when several defaults exist.
		return matchResult(ct, &ct.DefaultRows[0], true), nil
	}

	if considered > 0 && errored == considered {
		return nil, fmt.Errorf("%w: all %d rows of table %s errored", ErrEvaluationFailed, considered, ct.ID)
	}

	return &EvaluationResult{
		TableID:   ct.ID,
		TableName: ct.Name,
		Matched:   false,
		Inputs:    inputs,
	}, nil
}

// rowMatches reports whether every condition of the row holds. An empty
// condition list matches unconditionally, which is the intended behavior
// for a catch-all normal row.
func rowMatches(row *compiledRow, inputs map[string]any) (bool, error) {
	for i := range row.Conditions {
		ok, err := conditionMatches(&row.Conditions[i], inputs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func conditionMatches(cond *compiledCondition, inputs map[string]any) (bool, error) {
	raw, present := inputs[cond.Column]

	if operatorNeedsValue(cond.Operator) {
		// A value-comparing condition against an absent input is simply
		// not a match; same for a comparand that never parsed.
		if !present || !cond.parsedOK {
			return false, nil
		}
	}

	switch cond.Kind {
	case KindNumber:
		actual, ok := coerceNumber(raw)
		if !ok {
			return false, nil
		}
		return CompareNumber(cond.Operator, cond.numComparand, actual)
	case KindBoolean:
		actual, ok := coerceBoolean(raw)
		if !ok {
			return false, nil
		}
		return CompareBoolean(cond.Operator, cond.boolComparand, actual)
	default:
		actual := ""
		if present {
			var ok bool
			actual, ok = coerceString(raw)
			if !ok && operatorNeedsValue(cond.Operator) {
				return false, nil
			}
		}
		return CompareString(cond.Operator, cond.Comparand, actual, present)
	}
}

func matchResult(ct *CompiledTable, row *compiledRow, isDefault bool) *EvaluationResult {
	outputs := make(map[string]any, len(row.Results))
	for _, res := range row.Results {
		outputs[res.Column] = res.Value
	}
	return &EvaluationResult{
		TableID:   ct.ID,
		TableName: ct.Name,
		Matched:   true,
		Default:   isDefault,
		Outputs:   outputs,
	}
}
