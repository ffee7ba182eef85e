package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/database"
)

const columnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

type Introspector struct {
	open      database.OpenFunc
	namespace string
}

func NewIntrospector(open database.OpenFunc, namespace string) *Introspector {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "public"
	}
	return &Introspector{open: open, namespace: namespace}
}

// Describe opens one connection, reads the column catalog for the configured
// namespace and closes the connection before returning. It does not retry.
func (i *Introspector) Describe(ctx context.Context) (Schema, error) {
	if i.open == nil {
		return Schema{}, fmt.Errorf("database opener is required")
	}
	db, err := i.open(ctx)
	if err != nil {
		return Schema{}, fmt.Errorf("connect for introspection: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, columnsQuery, i.namespace)
	if err != nil {
		return Schema{}, fmt.Errorf("query column catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out Schema
	index := map[string]int{}
	for rows.Next() {
		var tableName, column, dataType string
		if err := rows.Scan(&tableName, &column, &dataType); err != nil {
			return Schema{}, fmt.Errorf("scan column row: %w", err)
		}
		pos, ok := index[tableName]
		if !ok {
			pos = len(out.Tables)
			index[tableName] = pos
			out.Tables = append(out.Tables, Table{Name: tableName})
		}
		out.Tables[pos].Columns = append(out.Tables[pos].Columns, Column{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("iterate column rows: %w", err)
	}
	return out, nil
}
