package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/flowgrid/internal/ir"
)

// ErrInvalidQuery reports a query outside the supported fragment.
var ErrInvalidQuery = errors.New("invalid journal query")

// Validate checks a query against the fragment: known fields only, integer
// values for seq and time, string values for kind and path, non-negative
// limits and a save to read from. All problems are reported together.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuery, errors.Join(v.problems...))
}

// validator accumulates problems during traversal.
type validator struct {
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Save == "" {
		v.addProblem("save is required")
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validateValue(pred.Field, pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case Range:
		v.validateRange(pred)
	case *Range:
		v.validateRange(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateField(f Field) bool {
	if !Fields[f] {
		v.addProblem("unknown field %q", f)
		return false
	}
	return true
}

func integerField(f Field) bool {
	return f == FieldSeq || f == FieldTime
}

func (v *validator) validateValue(f Field, val ir.Value) {
	if !v.validateField(f) {
		return
	}
	switch val.(type) {
	case ir.Int:
		if !integerField(f) {
			v.addProblem("field %q compared to an integer", f)
		}
	case ir.String:
		if integerField(f) {
			v.addProblem("field %q compared to a string", f)
		}
	default:
		v.addProblem("field %q compared to unsupported value %T", f, val)
	}
}

func (v *validator) validateIn(in In) {
	for _, val := range in.Values {
		v.validateValue(in.Field, val)
	}
	if len(in.Values) == 0 {
		v.validateField(in.Field)
	}
}

func (v *validator) validateRange(r Range) {
	if !v.validateField(r.Field) {
		return
	}
	if !integerField(r.Field) {
		v.addProblem("range over non-integer field %q", r.Field)
	}
	if r.From != nil && r.To != nil && *r.From > *r.To {
		v.addProblem("empty range on %q: %d > %d", r.Field, *r.From, *r.To)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
