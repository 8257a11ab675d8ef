package db

import (
	"fmt"

	"github.com/google/uuid"
)

// Query builds a filtered SELECT with a matching COUNT. Clauses are appended
// with AND and use $%d verbs that are numbered as they are added.
type Query struct {
	from    string
	cols    string
	where   string
	args    []interface{}
	orderBy string
}

// NewQuery starts a query over from (a table or join expression).
func NewQuery(from, cols string) *Query {
	return &Query{from: from, cols: cols}
}

// Next returns the next free placeholder number.
func (q *Query) Next() int { return len(q.args) + 1 }

// Where appends a clause. format holds one $%d verb per argument, or indexed
// verbs ($%[1]d) when an argument is referenced more than once.
func (q *Query) Where(format string, args ...interface{}) {
	idx := make([]interface{}, len(args))
	for i := range args {
		idx[i] = q.Next() + i
	}
	q.where += " AND " + fmt.Sprintf(format, idx...)
	q.args = append(q.args, args...)
}

// WhereIn restricts column to ids. A nil scope adds nothing; an empty,
// non-nil scope matches no rows.
func (q *Query) WhereIn(column string, ids []uuid.UUID) {
	if ids == nil {
		return
	}
	if len(ids) == 0 {
		q.where += " AND FALSE"
		return
	}
	q.Where(column+" = ANY($%d)", ids)
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *Query) OrderBy(orderBy string) { q.orderBy = orderBy }

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.from, q.where)
}

func (q *Query) Args() []interface{} { return q.args }

func (q *Query) SQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.from, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	return sql
}

// PageSQL is SQL with LIMIT/OFFSET placeholders appended; use PageArgs.
func (q *Query) PageSQL() string {
	n := q.Next()
	return q.SQL() + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1)
}

func (q *Query) PageArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}
