// Package assets embeds the SQL migrations shipped with the server binary.
package assets

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var FS embed.FS

// Migration is a single named SQL script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the scripts for a dialect ("sqlite" or "postgres"),
// sorted lexically by file name.
func Migrations(dialect string) ([]Migration, error) {
	dir := "sql/" + dialect
	entries, err := fs.ReadDir(FS, dir)
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		b, err := fs.ReadFile(FS, dir+"/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
