package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

// SettingRepo reads and writes the flat admin_settings key-value table.
type SettingRepo struct{ db *database.DB }

func NewSettingRepo(db *database.DB) *SettingRepo { return &SettingRepo{db: db} }

// Get returns the value for a setting, or def when the row is absent.
func (r *SettingRepo) Get(ctx context.Context, name, def string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM admin_settings WHERE name = ? LIMIT 1", name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// Set upserts a setting and records the last writer.  Update-then-insert
// keeps the statement portable across all three backends.
func (r *SettingRepo) Set(ctx context.Context, name, value, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE admin_settings SET value = ?, updated_by = ?, updated_at = ? WHERE name = ?",
		value, updatedBy, time.Now().UTC(), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO admin_settings (name, value, updated_by) VALUES (?,?,?)",
		name, value, updatedBy)
	if err != nil && r.db.Dialect.IsDuplicate(err) {
		// lost a concurrent insert race; the other writer's value stands
		return nil
	}
	return err
}

// All returns every setting row ordered by name.
func (r *SettingRepo) All(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, value, updated_by, updated_at FROM admin_settings ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Setting
	for rows.Next() {
		var s model.Setting
		var by sql.NullString
		if err := rows.Scan(&s.Name, &s.Value, &by, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.UpdatedBy = by.String
		out = append(out, s)
	}
	return out, rows.Err()
}
