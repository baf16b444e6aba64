package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	const q = "SELECT id FROM users WHERE username = ? AND email = ?"

	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t,
		"SELECT id FROM users WHERE username = $1 AND email = $2",
		Postgres.Rebind(q))
}

func TestRebindIdempotent(t *testing.T) {
	q := Postgres.Rebind("INSERT INTO t (a, b, c) VALUES (?,?,?)")
	assert.Equal(t, "INSERT INTO t (a, b, c) VALUES ($1,$2,$3)", q)
	assert.Equal(t, q, Postgres.Rebind(q), "rebinding twice must not renumber")
}

func TestRewriteDDL(t *testing.T) {
	const create = `CREATE TABLE IF NOT EXISTS t (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thc REAL,
		ok BOOLEAN NOT NULL DEFAULT 0,
		at DATETIME
	)`

	s, ok := SQLite.RewriteDDL(create)
	assert.True(t, ok)
	assert.Equal(t, create, s, "sqlite is the canonical flavor")

	s, ok = MySQL.RewriteDDL(create)
	assert.True(t, ok)
	assert.Contains(t, s, "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, s, "DOUBLE")
	assert.NotContains(t, s, "AUTOINCREMENT")

	s, ok = Postgres.RewriteDDL(create)
	assert.True(t, ok)
	assert.Contains(t, s, "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, s, "TIMESTAMP")
	assert.Contains(t, s, "BOOLEAN NOT NULL DEFAULT FALSE")
}

func TestRewriteDDLSkipsPragmaOffSQLite(t *testing.T) {
	const pragma = "PRAGMA foreign_keys = ON"

	_, ok := MySQL.RewriteDDL(pragma)
	assert.False(t, ok)
	_, ok = Postgres.RewriteDDL(pragma)
	assert.False(t, ok)
	_, ok = SQLite.RewriteDDL(pragma)
	assert.True(t, ok)
}

func TestRewriteDDLIndex(t *testing.T) {
	const idx = "CREATE INDEX IF NOT EXISTS idx_t_a ON t (a)"
	s, ok := MySQL.RewriteDDL(idx)
	assert.True(t, ok)
	assert.Equal(t, "CREATE INDEX idx_t_a ON t (a)", s)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, SQLite.IsDuplicate(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.True(t, MySQL.IsDuplicate(errors.New("Error 1062 (23000): Duplicate entry 'x' for key 'users.username'")))
	assert.True(t, Postgres.IsDuplicate(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`)))

	assert.False(t, SQLite.IsDuplicate(nil))
	assert.False(t, SQLite.IsDuplicate(errors.New("no such table: users")))
	assert.False(t, MySQL.IsDuplicate(errors.New("Error 1061 (42000): Duplicate key name 'idx'")))
}

func TestIsDuplicateIndex(t *testing.T) {
	assert.True(t, MySQL.IsDuplicateIndex(errors.New("Error 1061 (42000): Duplicate key name 'idx_users_email'")))
	assert.False(t, MySQL.IsDuplicateIndex(nil))
}
