// Package querysql compiles journal queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/queryir"
)

// Columns are the journal columns every compiled query selects, in scan
// order.
var Columns = []string{"seq", "save_id", "kind", "time", "path", "payload", "game_digest"}

// Compile converts a journal query to SQL and its parameters.
//
// Every query is ordered by seq so results follow the order edits were
// applied. Values are never interpolated; field names come from the fixed
// queryir field set and are checked by queryir.Validate first.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}
	switch query := q.(type) {
	case queryir.Select:
		return compileSelect(query)
	case *queryir.Select:
		return compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	where := "save_id = ?"
	params := []any{q.Save}
	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT %s FROM journal WHERE %s ORDER BY seq ASC",
		strings.Join(Columns, ", "), where)
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// compilePredicate returns a WHERE fragment. Values are always ?
// placeholders.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.In:
		return compileIn(pred)
	case *queryir.In:
		return compileIn(*pred)
	case queryir.Range:
		return compileRange(pred)
	case *queryir.Range:
		return compileRange(*pred)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value %d: %w", i, err)
		}
		params[i] = param
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", in.Field, marks), params, nil
}

func compileRange(r queryir.Range) (string, []any, error) {
	var parts []string
	var params []any
	if r.From != nil {
		parts = append(parts, fmt.Sprintf("%s >= ?", r.Field))
		params = append(params, *r.From)
	}
	if r.To != nil {
		parts = append(parts, fmt.Sprintf("%s < ?", r.Field))
		params = append(params, *r.To)
	}
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	var parts []string
	var all []any
	for _, pred := range and.Predicates {
		sql, params, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		all = append(all, params...)
	}
	return strings.Join(parts, " AND "), all, nil
}

// valueToParam converts a literal to a Go value for a SQL parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
