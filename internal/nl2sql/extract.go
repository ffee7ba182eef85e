package nl2sql

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoStatement = errors.New("no SQL statement found in model response")

var (
	fencedSQLPattern = regexp.MustCompile("(?is)```sql\\s*(.*?)```")
	sqlLeadPattern   = regexp.MustCompile(`(?i)^\(*\s*(select|with|insert|update|delete|create|alter|drop|truncate|explain|show|values|table|merge|grant|revoke|begin|commit|rollback|set|copy|call|do|analyze|vacuum)\b`)
)

type Statement struct {
	SQL string
	// Fenced reports whether the statement came from a ```sql block rather
	// than the whole-response fallback.
	Fenced bool
}

type Extractor struct {
	// Strict rejects fallback text that does not open with a SQL keyword.
	Strict bool
}

// Extract returns the trimmed body of the first ```sql fenced block. Without
// one, the entire trimmed response is taken as the statement.
func (e Extractor) Extract(raw string) (Statement, error) {
	if match := fencedSQLPattern.FindStringSubmatch(raw); match != nil {
		sqlText := strings.TrimSpace(match[1])
		if sqlText == "" {
			return Statement{}, ErrNoStatement
		}
		return Statement{SQL: sqlText, Fenced: true}, nil
	}

	sqlText := strings.TrimSpace(raw)
	if sqlText == "" {
		return Statement{}, ErrNoStatement
	}
	if e.Strict && !sqlLeadPattern.MatchString(sqlText) {
		return Statement{}, ErrNoStatement
	}
	return Statement{SQL: sqlText}, nil
}
