package query

import (
	"context"
	"time"
)

// Result is either a success (columns plus rows) or a failure (message).
// Build values with Success or Failure and branch on Failed.
type Result struct {
	columns  []string
	rows     [][]any
	failure  string
	failed   bool
	Duration time.Duration
}

func Success(columns []string, rows [][]any) Result {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return Result{columns: columns, rows: rows}
}

func Failure(message string) Result {
	if message == "" {
		message = "query failed"
	}
	return Result{failure: message, failed: true}
}

func (r Result) Failed() bool {
	return r.failed
}

// Columns is empty for failures.
func (r Result) Columns() []string {
	return r.columns
}

// Rows is empty for failures.
func (r Result) Rows() [][]any {
	return r.rows
}

// Message is empty for successes.
func (r Result) Message() string {
	return r.failure
}

func (r Result) RowCount() int {
	return len(r.rows)
}

type Runner interface {
	Execute(ctx context.Context, sqlText string) Result
}
