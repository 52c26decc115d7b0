// Package queryir is the abstract form of edit journal queries.
//
// The CLI and the session loop describe which journal entries they want as
// a Query; the querysql package turns it into parameterized SQL. Keeping
// the description separate from SQL lets the filter set be validated and
// tested without a database.
//
// The fragment is deliberately small:
//   - Select over the journal of one save, with an optional Limit
//   - Predicates: Equals, In, Range, And
//   - Fields: seq, kind, time, path
//
// There are no OR predicates, joins or aggregations. Results are always in
// journal order, which is the order edits were applied.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over them exhaustively.
package queryir
