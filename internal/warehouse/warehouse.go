// Package warehouse holds the three business tables in an in-memory DuckDB
// instance and executes read-only SQL against them.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/observability"
)

// ErrRejectedStatement is returned for any statement that does not begin
// with SELECT. The gate is a deliberate syntactic allow-list, not a SQL
// parser: CTEs starting with WITH and multi-statement batches are refused.
var ErrRejectedStatement = errors.New("only SELECT statements are allowed")

// ExecutionError wraps a backing-engine failure for an otherwise accepted
// SELECT, preserving the engine diagnostic unmodified.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// RowMaps renders rows as column-name keyed objects, the shape the serving
// boundary returns.
func (r Result) RowMaps() []map[string]any {
	maps := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			m[column] = row[i]
		}
		maps = append(maps, m)
	}
	return maps
}

// Store owns a single DuckDB handle. The engine is not safe for concurrent
// use from multiple goroutines, so every call holds mu for its duration.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func Open() (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Initialize loads the three tables, replacing any existing content. It
// fails unless every dataset has a non-empty column set; column types are
// inferred from the source values.
func (s *Store) Initialize(ctx context.Context, bundle dataset.Bundle) error {
	for _, table := range bundle.Tables() {
		if len(table.Columns) == 0 {
			return fmt.Errorf("dataset %q has no columns", table.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range bundle.Tables() {
		if err := s.loadTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadTable(ctx context.Context, table dataset.Table) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table.Name)); err != nil {
		return fmt.Errorf("drop table %q: %w", table.Name, err)
	}

	columnDefs := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnDefs[i] = quoteIdent(column) + " " + inferColumnType(table.Rows, i)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table.Name), strings.Join(columnDefs, ", "))
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", table.Name, err)
	}

	if len(table.Rows) == 0 {
		return nil
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(table.Columns)), ",") + ")"
	const batchSize = 500
	for start := 0; start < len(table.Rows); start += batchSize {
		end := start + batchSize
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		batch := table.Rows[start:end]

		values := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(table.Columns))
		for i, row := range batch {
			values[i] = placeholders
			args = append(args, row...)
		}
		insertSQL := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(table.Name), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("load table %q: %w", table.Name, err)
		}
	}
	return nil
}

// Query executes a single SELECT statement and returns rows in result
// order. Statements that do not begin with SELECT fail with
// ErrRejectedStatement before the backing store is touched.
func (s *Store) Query(ctx context.Context, sqlText string) (Result, error) {
	if !isSelect(sqlText) {
		observability.IncrementRejectedStatements()
		return Result{}, ErrRejectedStatement
	}

	text := stripTrailingSemicolons(sqlText)
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, text)
	if err != nil {
		observability.IncrementQueryFailures()
		return Result{}, &ExecutionError{SQL: text, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &ExecutionError{SQL: text, Err: err}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &ExecutionError{SQL: text, Err: err}
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		observability.IncrementQueryFailures()
		return Result{}, &ExecutionError{SQL: text, Err: err}
	}

	elapsed := time.Since(start)
	observability.ObserveQueryLatency(elapsed)
	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: elapsed,
	}, nil
}

func isSelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sqlText)), "select")
}

func inferColumnType(rows [][]any, idx int) string {
	sawInt := false
	for _, row := range rows {
		switch row[idx].(type) {
		case nil:
			continue
		case time.Time:
			return "DATE"
		case float64:
			return "DOUBLE"
		case int64:
			sawInt = true
		default:
			return "VARCHAR"
		}
	}
	if sawInt {
		return "BIGINT"
	}
	return "VARCHAR"
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
