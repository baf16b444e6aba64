// Placeholder, DDL and error-shape differences between the supported SQL
// backends live in this file.  Repositories write every query against the
// canonical `?` placeholder style and sqlite-flavored DDL; nothing outside
// this package branches on the driver.
package database

import (
	"strconv"
	"strings"
)

// Dialect identifies one of the supported SQL backends.
type Dialect string

const (
	SQLite   Dialect = "sqlite"   // embedded, file-based (modernc.org/sqlite)
	MySQL    Dialect = "mysql"    // client/server (go-sql-driver/mysql)
	Postgres Dialect = "postgres" // client/server (lib/pq)
)

// Rebind rewrites canonical `?` placeholders into the dialect's native
// style.  Only postgres needs rewriting ($1..$n); sqlite and mysql consume
// `?` directly.  This is a plain textual substitution: callers must keep
// the placeholder token out of string literals.  Rebinding a query that is
// already in the target style is a no-op, so the operation is idempotent.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.ContainsRune(query, '?') {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
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

// RewriteDDL adapts a canonical CREATE/ALTER statement to the dialect.
// The rewrite is best-effort and purely textual; statements that cannot be
// translated mechanically report ok=false and must be skipped rather than
// executed incorrectly.
func (d Dialect) RewriteDDL(stmt string) (string, bool) {
	if d != SQLite && strings.Contains(stmt, "PRAGMA") {
		return "", false
	}
	switch d {
	case MySQL:
		s := strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
		s = strings.ReplaceAll(s, " REAL", " DOUBLE")
		// MySQL has no IF NOT EXISTS for indexes; the duplicate-index error
		// is recognized and tolerated by the schema initializer instead.
		s = strings.ReplaceAll(s, " INDEX IF NOT EXISTS ", " INDEX ")
		return s, true
	case Postgres:
		s := strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
		s = strings.ReplaceAll(s, " DATETIME", " TIMESTAMP")
		s = strings.ReplaceAll(s, " REAL", " DOUBLE PRECISION")
		s = strings.ReplaceAll(s, "BOOLEAN NOT NULL DEFAULT 0", "BOOLEAN NOT NULL DEFAULT FALSE")
		s = strings.ReplaceAll(s, "BOOLEAN NOT NULL DEFAULT 1", "BOOLEAN NOT NULL DEFAULT TRUE")
		return s, true
	default:
		return stmt, true
	}
}

// IsDuplicate reports whether err is the backend's unique-constraint
// violation.  Handlers surface these as conflicts with the same message
// regardless of whether a pre-check or the constraint caught them.
func (d Dialect) IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch d {
	case MySQL:
		return strings.Contains(msg, "error 1062") || strings.Contains(msg, "duplicate entry")
	case Postgres:
		return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
	default:
		return strings.Contains(msg, "unique constraint")
	}
}

// IsDuplicateIndex reports whether err means the index already exists.
// Only mysql can produce this during EnsureSchema, because its CREATE INDEX
// lacks IF NOT EXISTS.
func (d Dialect) IsDuplicateIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "error 1061") || strings.Contains(msg, "duplicate key name") ||
		strings.Contains(msg, "already exists")
}
