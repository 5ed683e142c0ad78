// Package sqlfilter renders a model.ListFilter into a WHERE clause shared by
// the SQL-speaking backends. Placeholder style differs per driver: pgx wants
// $1..$n, go-ora wants :1..:n.
package sqlfilter

import (
	"fmt"
	"strings"

	"github.com/reqvault/reqvault/internal/model"
)

type Style int

const (
	Dollar Style = iota // $1, $2, ...
	Colon               // :1, :2, ...
)

func (s Style) placeholder(n int) string {
	if s == Colon {
		return fmt.Sprintf(":%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

// Build returns the WHERE body (without the keyword) and its bind arguments.
// Soft-deleted rows are always excluded.
func Build(f model.ListFilter, style Style) (string, []interface{}) {
	clauses := []string{"deleted_at IS NULL"}
	var args []interface{}

	next := func() string {
		return style.placeholder(len(args))
	}

	if f.Method != "" {
		args = append(args, f.Method)
		clauses = append(clauses, "method = "+next())
	}
	if f.PathPrefix != "" {
		args = append(args, f.PathPrefix+"%")
		clauses = append(clauses, "path LIKE "+next())
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		clauses = append(clauses, "timestamp >= "+next())
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		clauses = append(clauses, "timestamp <= "+next())
	}
	if f.HasFiles != nil {
		if style == Colon {
			// Oracle has no boolean column type; has_files is NUMBER(1).
			v := 0
			if *f.HasFiles {
				v = 1
			}
			args = append(args, v)
		} else {
			args = append(args, *f.HasFiles)
		}
		clauses = append(clauses, "has_files = "+next())
	}

	return strings.Join(clauses, " AND "), args
}
