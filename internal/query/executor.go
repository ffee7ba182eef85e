package query

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	duckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/askdb/askdb/internal/database"
)

// Executor runs one statement per call on a connection opened for that call
// alone. Every failure is reported through the returned Result.
type Executor struct {
	open    database.OpenFunc
	timeout time.Duration
}

// NewExecutor builds an executor. timeout <= 0 leaves statements unbounded.
func NewExecutor(open database.OpenFunc, timeout time.Duration) *Executor {
	return &Executor{open: open, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (result Result) {
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Failure(fmt.Sprintf("query panicked: %v", recovered))
		}
		result.Duration = time.Since(start)
	}()

	if strings.TrimSpace(sqlText) == "" {
		return Failure("sql is required")
	}
	if err := checkSingleStatement(sqlText); err != nil {
		return Failure(err.Error())
	}
	if e.open == nil {
		return Failure("database opener is not configured")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	db, err := e.open(ctx)
	if err != nil {
		return Failure(fmt.Sprintf("connect: %v", err))
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Failure(err.Error())
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Failure(fmt.Sprintf("read columns: %v", err))
	}
	typeNames := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range columnTypes {
			typeNames[i] = columnType.DatabaseTypeName()
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Failure(fmt.Sprintf("scan row: %v", err))
		}
		resultRows = append(resultRows, normalizeValues(values, typeNames))
	}
	if err := rows.Err(); err != nil {
		return Failure(err.Error())
	}
	return Success(columns, resultRows)
}

// normalizeValues turns driver-specific values into JSON-friendly scalars.
// DuckDB hands back DECIMAL as a struct, HUGEINT as *big.Int and UUID as raw
// bytes; PostgreSQL already returns strings for the equivalents.
func normalizeValues(values []any, typeNames []string) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			if typeNames[i] == "UUID" && len(typed) == 16 {
				normalized[i] = uuid.UUID(typed).String()
				continue
			}
			normalized[i] = string(typed)
		case duckdb.Decimal:
			normalized[i] = formatDecimal(typed)
		case *big.Int:
			normalized[i] = typed.String()
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// formatDecimal keeps every fractional digit of the declared scale, so
// DECIMAL(10,2) 1200 renders as "1200.00".
func formatDecimal(d duckdb.Decimal) string {
	if d.Value == nil {
		return "0"
	}
	digits := new(big.Int).Abs(d.Value).String()
	if scale := int(d.Scale); scale > 0 {
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if d.Value.Sign() < 0 {
		return "-" + digits
	}
	return digits
}
