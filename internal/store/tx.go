package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xwb1989/sqlparser"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrInvalidParam    = errors.New("invalid parameter type")
	ErrNotEnoughParams = errors.New("not enough parameters")
	ErrTooManyParams   = errors.New("too many parameters")
	ErrBusyTimeout     = errors.New("database busy")
)

// timestampLayout matches SQLite's CURRENT_TIMESTAMP text.
const timestampLayout = "2006-01-02 15:04:05"

// Row is a single result row keyed by column name.
type Row map[string]any

// Mapper converts a raw row into the value stored in Results.
type Mapper func(Row) (any, error)

// Statement is one entry of a transaction batch. SQL may hold several
// statements separated by semicolons; Params are consumed in order.
type Statement struct {
	SQL    string
	Params []any
	OutKey string
	Mapper Mapper
}

// Tx accumulates statements. Nothing touches the database until the
// batch is handed to DB.Transaction.
type Tx struct {
	statements []Statement
}

// NewTx returns an empty batch
func NewTx() *Tx {
	return &Tx{}
}

// AddSQL appends a statement whose rows, if any, are discarded
func (tx *Tx) AddSQL(sql string, params []any) {
	tx.statements = append(tx.statements, Statement{SQL: sql, Params: params})
}

// AddQuery appends a statement whose rows are collected under outKey
func (tx *Tx) AddQuery(outKey, sql string, params []any) {
	tx.statements = append(tx.statements, Statement{SQL: sql, Params: params, OutKey: outKey})
}

// AddMappedQuery appends a statement whose rows pass through mapper
// before being collected under outKey
func (tx *Tx) AddMappedQuery(outKey, sql string, params []any, mapper Mapper) {
	tx.statements = append(tx.statements, Statement{SQL: sql, Params: params, OutKey: outKey, Mapper: mapper})
}

// Len returns the number of queued statements
func (tx *Tx) Len() int {
	return len(tx.statements)
}

// Statements returns a copy of the queued statements
func (tx *Tx) Statements() []Statement {
	out := make([]Statement, len(tx.statements))
	copy(out, tx.statements)
	return out
}

// TxOptions controls how a batch is executed
type TxOptions struct {
	// NoTransaction runs the statements without BEGIN/END
	NoTransaction bool
}

// Results maps an output key to the rows produced for it
type Results map[string][]any

// Rows returns the raw rows stored under key. Mapped values are skipped.
func (r Results) Rows(key string) []Row {
	var rows []Row
	for _, v := range r[key] {
		if row, ok := v.(Row); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// First returns the first value stored under key
func (r Results) First(key string) (any, bool) {
	values := r[key]
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// Int reads an integer column from the first raw row under key
func (r Results) Int(key, column string) (int64, bool) {
	rows := r.Rows(key)
	if len(rows) == 0 {
		return 0, false
	}
	switch v := rows[0][column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Transaction executes the batch on the serial queue and returns the
// collected rows. Any failure rolls the batch back and returns the
// original error.
func (db *DB) Transaction(ctx context.Context, tx *Tx, opts TxOptions) (Results, error) {
	var results Results
	err := db.queue.Submit(ctx, func(ctx context.Context) error {
		var err error
		results, err = db.execute(ctx, tx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (db *DB) execute(ctx context.Context, tx *Tx, opts TxOptions) (Results, error) {
	start := time.Now()
	results := Results{}
	issued := 0

	conn, err := db.handle.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	fail := func(err error) (Results, error) {
		if !opts.NoTransaction {
			db.rollback(conn)
		}
		db.metrics.ObserveTransaction(err, issued, time.Since(start))
		return nil, err
	}

	if !opts.NoTransaction {
		if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
	}

	for i, stmt := range tx.statements {
		n, err := runStatement(ctx, conn, stmt, results)
		issued += n
		if err != nil {
			return fail(fmt.Errorf("statement %d failed: %w", i, err))
		}
	}

	if !opts.NoTransaction {
		if err := db.commit(ctx, conn); err != nil {
			return fail(err)
		}
	}

	db.metrics.ObserveTransaction(nil, issued, time.Since(start))
	return results, nil
}

// commit ends the transaction, polling while the database reports busy
func (db *DB) commit(ctx context.Context, conn *sqlx.Conn) error {
	err := retryBusy(ctx, db.opts.BusyRetryInterval, db.opts.BusyMaxAttempts, isBusy, func() error {
		_, err := conn.ExecContext(ctx, "END TRANSACTION")
		return err
	}, func(attempt int) {
		db.metrics.BusyRetry()
		db.log.Debug("commit busy, retrying", "attempt", attempt)
	})
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) rollback(conn *sqlx.Conn) {
	if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		db.log.Warn("rollback failed", "error", err)
	}
}

// retryBusy calls fn until it succeeds, fails with a non-busy error, or
// maxAttempts busy results have been seen.
func retryBusy(ctx context.Context, interval time.Duration, maxAttempts int, busy func(error) bool, fn func() error, onRetry func(attempt int)) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !busy(err) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrBusyTimeout, attempt, err)
		}
		if onRetry != nil {
			onRetry(attempt)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// runStatement issues each piece of stmt.SQL and returns how many pieces ran
func runStatement(ctx context.Context, conn *sqlx.Conn, stmt Statement, results Results) (int, error) {
	pieces, err := splitStatements(stmt.SQL)
	if err != nil {
		return 0, err
	}

	params := stmt.Params
	issued := 0
	for _, piece := range pieces {
		n, err := countPlaceholders(piece)
		if err != nil {
			return issued, err
		}
		if n > len(params) {
			return issued, fmt.Errorf("%w: statement needs %d, %d left", ErrNotEnoughParams, n, len(params))
		}
		args, err := checkParams(params[:n])
		if err != nil {
			return issued, err
		}
		params = params[n:]

		issued++
		if !isQuery(piece) {
			if _, err := conn.ExecContext(ctx, piece, args...); err != nil {
				return issued, err
			}
			continue
		}
		if err := collectRows(ctx, conn, piece, args, stmt, results); err != nil {
			return issued, err
		}
	}

	if len(params) > 0 {
		return issued, fmt.Errorf("%w: %d unused", ErrTooManyParams, len(params))
	}
	return issued, nil
}

func collectRows(ctx context.Context, conn *sqlx.Conn, query string, args []any, stmt Statement, results Results) error {
	rows, err := conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return err
		}
		if stmt.OutKey == "" {
			continue
		}
		normalizeRow(row)
		var value any = row
		if stmt.Mapper != nil {
			if value, err = stmt.Mapper(row); err != nil {
				return err
			}
		}
		results[stmt.OutKey] = append(results[stmt.OutKey], value)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if stmt.OutKey != "" {
		if _, ok := results[stmt.OutKey]; !ok {
			results[stmt.OutKey] = []any{}
		}
	}
	return nil
}

func normalizeRow(row Row) {
	for k, v := range row {
		switch val := v.(type) {
		case []byte:
			row[k] = string(val)
		case time.Time:
			row[k] = val.UTC().Format(timestampLayout)
		}
	}
}

// checkParams resolves driver.Valuer params and rejects anything that is
// not a plain scalar.
func checkParams(params []any) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		if v, ok := p.(driver.Valuer); ok {
			val, err := v.Value()
			if err != nil {
				return nil, fmt.Errorf("%w: position %d: %v", ErrInvalidParam, i, err)
			}
			p = val
		}
		switch p.(type) {
		case nil, string, int, int64, float64, float32, bool:
		default:
			return nil, fmt.Errorf("%w: %T at position %d", ErrInvalidParam, p, i)
		}
		out[i] = p
	}
	return out, nil
}

func splitStatements(sql string) ([]string, error) {
	pieces, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to split statements: %w", err)
	}
	out := pieces[:0]
	for _, piece := range pieces {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	return out, nil
}

func countPlaceholders(sql string) (int, error) {
	tokenizer := sqlparser.NewStringTokenizer(sql)
	count := 0
	for {
		typ, val := tokenizer.Scan()
		switch typ {
		case 0:
			return count, nil
		case sqlparser.LEX_ERROR:
			return 0, fmt.Errorf("failed to tokenize statement near %q", string(val))
		case sqlparser.VALUE_ARG:
			count++
		}
	}
}

func isQuery(sql string) bool {
	if sqlparser.Preview(sql) == sqlparser.StmtSelect {
		return true
	}
	first := strings.ToLower(strings.Fields(sql)[0])
	switch first {
	case "with", "pragma", "values", "explain":
		return true
	}
	return false
}
