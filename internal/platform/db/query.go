package db

import (
	"fmt"
	"strings"
)

// Query accumulates a WHERE clause with positional ($n) arguments for a
// single table.
type Query struct {
	table   string
	cols    string
	where   []string
	args    []interface{}
	orderBy string
}

// NewQuery creates a query over table selecting cols.
func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols}
}

// Next returns the placeholder index the next argument will take.
func (q *Query) Next() int { return len(q.args) + 1 }

// Where appends a clause. The clause must reference its arguments through
// "?" markers, which are rewritten to $n in order.
func (q *Query) Where(clause string, args ...interface{}) *Query {
	for _, a := range args {
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", q.Next()), 1)
		q.args = append(q.args, a)
	}
	q.where = append(q.where, clause)
	return q
}

// Eq adds "column = value".
func (q *Query) Eq(column string, value interface{}) *Query {
	return q.Where(column+" = ?", value)
}

// Contains adds a case-insensitive substring match. LIKE wildcards in value
// are escaped so they match literally.
func (q *Query) Contains(column, value string) *Query {
	return q.Where(column+` ILIKE ? ESCAPE '\'`, "%"+EscapeLike(value)+"%")
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *Query) OrderBy(orderBy string) *Query {
	q.orderBy = orderBy
	return q
}

// WhereSQL returns " WHERE ..." or "" when no clause was added.
func (q *Query) WhereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// SelectSQL returns the full SELECT statement.
func (q *Query) SelectSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s%s", q.cols, q.table, q.WhereSQL())
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	return sql
}

// CountSQL returns the COUNT(*) statement for the same predicates.
func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.table, q.WhereSQL())
}

// Args returns the positional arguments in placeholder order.
func (q *Query) Args() []interface{} {
	return q.args
}

// EscapeLike escapes the LIKE metacharacters % and _ and the escape
// character itself.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
