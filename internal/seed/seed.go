// Package seed drops and recreates the sample customers/orders dataset.
package seed

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

var scriptNamePattern = regexp.MustCompile(`^[0-9]+_.+\.sql$`)

type Script struct {
	Name string
	SQL  string
}

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// Scripts returns the seed statements in execution order.
func (r *Runner) Scripts() ([]Script, error) {
	return loadScripts(r.fsys)
}

// Reset runs every script in one transaction. Existing sample tables are
// dropped unconditionally.
func (r *Runner) Reset(ctx context.Context, db *sql.DB) (int, error) {
	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, script := range scripts {
		if _, err := tx.ExecContext(ctx, script.SQL); err != nil {
			return 0, fmt.Errorf("run seed script %s: %w", script.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(scripts), nil
}

func loadScripts(fsys fs.FS) ([]Script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}

	scripts := make([]Script, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !scriptNamePattern.MatchString(entry.Name()) {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read seed script %q: %w", entry.Name(), err)
		}
		statement := strings.TrimSpace(string(body))
		if statement == "" {
			return nil, fmt.Errorf("seed script %q is empty", entry.Name())
		}
		scripts = append(scripts, Script{Name: entry.Name(), SQL: statement})
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no seed scripts found")
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })
	return scripts, nil
}
