// Package schema reads table and column metadata from the target database and
// renders it as the plain-text block embedded in the translator's system prompt.
package schema

import (
	"strings"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema keeps tables in the order the catalog returned them.
type Schema struct {
	Tables []Table `json:"tables"`
}

func (s Schema) Table(name string) (Table, bool) {
	for _, table := range s.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

// Render produces one line per table: "table: col1 (type1), col2 (type2)".
// Type names are emitted verbatim.
func Render(s Schema) string {
	lines := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, column.Name+" ("+column.Type+")")
		}
		lines = append(lines, table.Name+": "+strings.Join(columns, ", "))
	}
	return strings.Join(lines, "\n")
}
