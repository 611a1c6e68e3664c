// Package migrations holds the journal schemas and applies them at startup.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// script is one migration file.
type script struct {
	name string
	sql  string
}

// scripts returns the .sql files of dir in name order. Empty files are skipped.
func scripts(dir string) ([]script, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}

	var out []script
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(files, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, script{name: e.Name(), sql: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

var errQuotedSemicolon = errors.New("semicolon inside a string literal")

// statements splits a script on semicolons for drivers without multi-statement
// Exec. Whole-line -- comments are dropped first. A semicolon inside a quoted
// literal would be split wrongly, so it is rejected.
func statements(sql string) ([]string, error) {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch {
		case sql[i] == '\'' && quoted && i+1 < len(sql) && sql[i+1] == '\'':
			i++ // escaped quote
		case sql[i] == '\'':
			quoted = !quoted
		case sql[i] == ';' && quoted:
			return nil, errQuotedSemicolon
		}
	}

	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, part := range strings.Split(b.String(), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}
