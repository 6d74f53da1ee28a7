package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// buildSelect assembles the SELECT text for q and returns the arguments to
// bind. Clauses are emitted only when set. WhereArgs fill the placeholders
// of Where and then Having, in text order.
func buildSelect(q types.Select) (string, []types.Value, error) {
	if strings.TrimSpace(q.Table) == "" {
		return "", nil, fmt.Errorf("%w: select: table name is empty", types.ErrInvalidQuery)
	}
	predicate := strings.TrimSpace(q.Where + " " + q.Having)
	if err := checkPredicate(predicate, q.WhereArgs); err != nil {
		return "", nil, fmt.Errorf("select from %s: %w", q.Table, err)
	}
	if q.Having != "" && q.GroupBy == "" {
		return "", nil, fmt.Errorf("%w: select from %s: HAVING requires GROUP BY", types.ErrInvalidQuery, q.Table)
	}
	if q.Limit < 0 {
		return "", nil, fmt.Errorf("%w: select from %s: negative limit %d", types.ErrInvalidQuery, q.Table, q.Limit)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.Table)
	if q.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where)
	}
	if q.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(q.GroupBy)
	}
	if q.Having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(q.Having)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
		switch q.Order {
		case types.OrderDefault:
		case types.OrderAsc, types.OrderDesc:
			b.WriteString(" ")
			b.WriteString(string(q.Order))
		default:
			return "", nil, fmt.Errorf("%w: select from %s: unknown order %q", types.ErrInvalidQuery, q.Table, q.Order)
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String(), q.WhereArgs, nil
}

// buildInsert assembles a single-row INSERT with one placeholder per column.
func buildInsert(table string, columns []string, replace bool) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("%w: insert: table name is empty", types.ErrInvalidQuery)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: insert into %s: no columns", types.ErrInvalidQuery, table)
	}

	verb := "INSERT INTO "
	if replace {
		verb = "INSERT OR REPLACE INTO "
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return verb + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")", nil
}

// buildDelete assembles a DELETE. An empty where deletes every row.
func buildDelete(table, where string, args []types.Value) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("%w: delete: table name is empty", types.ErrInvalidQuery)
	}
	if err := checkPredicate(where, args); err != nil {
		return "", fmt.Errorf("delete from %s: %w", table, err)
	}
	if where == "" {
		return "DELETE FROM " + table, nil
	}
	return "DELETE FROM " + table + " WHERE " + where, nil
}

// checkPredicate rejects a template that uses placeholders without
// arguments, and arguments without a template. A ? inside a quoted literal
// or identifier is not a placeholder.
func checkPredicate(where string, args []types.Value) error {
	if where == "" && len(args) > 0 {
		return fmt.Errorf("%w: %d predicate arguments without a predicate", types.ErrInvalidQuery, len(args))
	}
	if len(args) == 0 && hasPlaceholder(where) {
		return fmt.Errorf("%w: predicate %q has placeholders but no arguments", types.ErrInvalidQuery, where)
	}
	return nil
}

// hasPlaceholder reports whether s has a ? outside '...', "...", `...` and
// [...] spans. A doubled quote inside a span is an escaped quote.
func hasPlaceholder(s string) bool {
	for i := 0; i < len(s); i++ {
		var end byte
		switch s[i] {
		case '?':
			return true
		case '\'', '"', '`':
			end = s[i]
		case '[':
			end = ']'
		default:
			continue
		}
		j := strings.IndexByte(s[i+1:], end)
		if j < 0 {
			return false
		}
		i += j + 1
	}
	return false
}
