package queryir

import "github.com/roach88/flowgrid/internal/ir"

// Query is a sealed interface over journal queries.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface over filter conditions.
type Predicate interface {
	predicateNode()
}

// Field names a filterable journal column.
type Field string

const (
	FieldSeq  Field = "seq"
	FieldKind Field = "kind"
	FieldTime Field = "time"
	FieldPath Field = "path"
)

// Fields lists the filterable columns.
var Fields = map[Field]bool{
	FieldSeq:  true,
	FieldKind: true,
	FieldTime: true,
	FieldPath: true,
}

// Select reads the journal of one save.
//
//	SELECT <entry columns> FROM journal
//	WHERE save_id = <Save> AND <Filter>
//	ORDER BY seq
//	LIMIT <Limit>
type Select struct {
	Save   string
	Filter Predicate // nil = every entry
	Limit  int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals matches entries whose field equals a literal.
//
//	Equals{Field: FieldKind, Value: ir.String("build")}
type Equals struct {
	Field Field
	Value ir.Value
}

func (Equals) predicateNode() {}

// In matches entries whose field equals any of the literals. An empty
// list matches nothing.
type In struct {
	Field  Field
	Values []ir.Value
}

func (In) predicateNode() {}

// Range matches integer fields in the half-open interval [From, To). A nil
// bound is open.
//
//	Range{Field: FieldTime, From: ptr(0), To: ptr(3600)}
type Range struct {
	Field Field
	From  *int64
	To    *int64
}

func (Range) predicateNode() {}

// And is a conjunction. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Bound returns a pointer to v for Range bounds.
func Bound(v int64) *int64 {
	return &v
}
