package query

import (
	"errors"
	"strings"
)

var ErrMultipleStatements = errors.New("only one SQL statement can be executed at a time")

// checkSingleStatement reports ErrMultipleStatements when anything other than
// whitespace, comments or further semicolons follows the first top-level
// semicolon. Quoted strings, quoted identifiers, dollar-quoted bodies and
// comments are skipped so a semicolon inside them does not count.
func checkSingleStatement(sqlText string) error {
	terminated := false
	for i := 0; i < len(sqlText); {
		c := sqlText[i]
		switch {
		case c == '-' && strings.HasPrefix(sqlText[i:], "--"):
			end := strings.IndexByte(sqlText[i:], '\n')
			if end < 0 {
				return nil
			}
			i += end + 1
			continue
		case c == '/' && strings.HasPrefix(sqlText[i:], "/*"):
			i = skipBlockComment(sqlText, i)
			continue
		case c == ';':
			terminated = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
			continue
		}

		if terminated {
			return ErrMultipleStatements
		}
		switch c {
		case '\'', '"', '`':
			i = skipQuoted(sqlText, i, c)
		case '$':
			i = skipDollarQuoted(sqlText, i)
		default:
			i++
		}
	}
	return nil
}

// skipQuoted returns the index after the closing quote. A doubled quote is an
// escaped quote.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// skipBlockComment honours nesting the way PostgreSQL does.
func skipBlockComment(s string, start int) int {
	depth := 0
	for i := start; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(s[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(s)
}

// skipDollarQuoted skips a $tag$...$tag$ body. A '$' that does not open a
// tag (for example a $1 placeholder) is consumed on its own.
func skipDollarQuoted(s string, start int) int {
	end := start + 1
	for end < len(s) && isTagByte(s[end], end == start+1) {
		end++
	}
	if end >= len(s) || s[end] != '$' {
		return start + 1
	}
	tag := s[start : end+1]
	closing := strings.Index(s[end+1:], tag)
	if closing < 0 {
		return len(s)
	}
	return end + 1 + closing + len(tag)
}

func isTagByte(c byte, first bool) bool {
	switch {
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80:
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}
