package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects placeholder syntax and constraint-error decoding.
type Dialect string

const (
	// Postgres uses $n placeholders and the lib/pq driver.
	Postgres Dialect = "postgres"
	// SQLite uses ? placeholders and the modernc.org/sqlite driver.
	SQLite Dialect = "sqlite"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", s)
	}
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) isUniqueViolation(err error) bool {
	switch d {
	case Postgres:
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	default:
		var sqlErr *sqlite.Error
		if !errors.As(err, &sqlErr) {
			return false
		}
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqlErr.Error(), "UNIQUE constraint failed")
		default:
			return false
		}
	}
}
