// Package sqlbuild turns media entities into upsert, select and delete
// statements queued on a store.Tx.
package sqlbuild

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/mediacache/internal/store"
)

// ErrInvalidArgument is returned for entities that cannot be written
var ErrInvalidArgument = errors.New("invalid argument")

const (
	currentTimestamp = "CURRENT_TIMESTAMP"
	updateTimeColumn = "updateTime"

	// maxRowsPerStatement keeps multi-row inserts under SQLite's bound
	// parameter limit
	maxRowsPerStatement = 100
)

// values collects the expressions and bound parameters of one row
type values struct {
	table string
	uri   string
	exprs []string
	args  []any
	err   error
}

func (v *values) bind(x any) {
	val, err := resolve(x)
	if err != nil && v.err == nil {
		v.err = err
	}
	v.exprs = append(v.exprs, "?")
	v.args = append(v.args, val)
}

func (v *values) raw(expr string) {
	v.exprs = append(v.exprs, expr)
}

// coalesce keeps the stored value of field
func (v *values) coalesce(field string) {
	v.exprs = append(v.exprs, fmt.Sprintf("(SELECT %s FROM %s WHERE uri = ?)", field, v.table))
	v.args = append(v.args, v.uri)
}

// coalesceOr keeps the stored value of field, falling back to x for new
// rows
func (v *values) coalesceOr(field string, x any) {
	v.exprs = append(v.exprs, fmt.Sprintf("COALESCE((SELECT %s FROM %s WHERE uri = ?), ?)", field, v.table))
	v.args = append(v.args, v.uri, x)
}

// nameOrStored binds name, unless the row is partial and name is empty
func (v *values) nameOrStored(coalesce bool, name string) {
	if coalesce && name == "" {
		v.coalesceOr("name", "")
		return
	}
	v.bind(name)
}

// maybeCoalesce binds x, unless the row is partial and x is absent, in
// which case the stored value is kept
func (v *values) maybeCoalesce(coalesce bool, field string, x any) {
	if !coalesce {
		v.bind(x)
		return
	}
	val, err := resolve(x)
	if err != nil {
		if v.err == nil {
			v.err = err
		}
		val = nil
	}
	if val == nil {
		v.coalesce(field)
		return
	}
	v.exprs = append(v.exprs, "?")
	v.args = append(v.args, val)
}

func resolve(x any) (any, error) {
	valuer, ok := x.(driver.Valuer)
	if !ok {
		return x, nil
	}
	val, err := valuer.Value()
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameter: %w", err)
	}
	return val, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// upsert accumulates rows for one INSERT OR REPLACE target
type upsert struct {
	table   string
	columns []string
	rows    []*values
}

func newUpsert(table string, columns ...string) *upsert {
	return &upsert{table: table, columns: columns}
}

func (u *upsert) row(uri string) *values {
	v := &values{table: u.table, uri: uri}
	u.rows = append(u.rows, v)
	return v
}

func (u *upsert) addTo(tx *store.Tx) error {
	for start := 0; start < len(u.rows); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(u.rows))
		tuples := make([]string, 0, end-start)
		var args []any
		for _, r := range u.rows[start:end] {
			if r.err != nil {
				return fmt.Errorf("failed to build %s row: %w", u.table, r.err)
			}
			if len(r.exprs) != len(u.columns) {
				return fmt.Errorf("%s row has %d values for %d columns", u.table, len(r.exprs), len(u.columns))
			}
			tuples = append(tuples, "("+strings.Join(r.exprs, ", ")+")")
			args = append(args, r.args...)
		}
		tx.AddSQL(fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES %s",
			u.table, strings.Join(u.columns, ", "), strings.Join(tuples, ", ")), args)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
