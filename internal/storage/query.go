package storage

import (
	"strconv"
	"strings"
)

// Where accumulates "and"-joined SQL predicates with numbered placeholders:
// $n for Postgres, ?n for SQLite (where $n is a named parameter bound by first appearance).
type Where struct {
	prefix string
	preds  []string
	args   []any
}

// NewWhere starts a $n clause with optional leading arguments already bound to $1..$n
// by the caller's fixed predicates.
func NewWhere(args ...any) *Where {
	return &Where{prefix: "$", args: append([]any(nil), args...)}
}

// NewSQLiteWhere is NewWhere with ?n placeholders.
func NewSQLiteWhere(args ...any) *Where {
	return &Where{prefix: "?", args: append([]any(nil), args...)}
}

// Next returns the placeholder for the next argument.
func (w *Where) Next() string { return w.prefix + strconv.Itoa(len(w.args)+1) }

// Add appends pred, replacing each "?" with the next placeholder, and binds args in order.
func (w *Where) Add(pred string, args ...any) *Where {
	var b strings.Builder
	i := 0
	for _, r := range pred {
		if r == '?' && i < len(args) {
			b.WriteString(w.Next())
			w.args = append(w.args, args[i])
			i++
			continue
		}
		b.WriteRune(r)
	}
	w.preds = append(w.preds, b.String())
	return w
}

// AddIf calls Add only when cond holds.
func (w *Where) AddIf(cond bool, pred string, args ...any) *Where {
	if cond {
		return w.Add(pred, args...)
	}
	return w
}

// SQL returns " and p1 and p2 ..." for appending after a fixed where clause.
func (w *Where) SQL() string {
	if len(w.preds) == 0 {
		return ""
	}
	return " and " + strings.Join(w.preds, " and ")
}

// Args returns every bound argument in placeholder order.
func (w *Where) Args() []any { return w.args }
