package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/utils"
)

const (
	maxFailedAttempts = 5
	lockoutCooldown   = 30 * time.Minute
	adminSessionTTL   = 2 * time.Hour
)

const adminColumns = `id, admin_name, password_hash, is_active, failed_attempts,
	locked_until, session_token, token_expires_at, last_login, created_at`

// AdminSession is what a successful verification hands back: an opaque
// token the console presents on subsequent requests.
type AdminSession struct {
	AdminName string    `json:"admin_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminRepo manages the operator credential store, its lockout state
// machine and the append-only activity log.
type AdminRepo struct{ db *database.DB }

func NewAdminRepo(db *database.DB) *AdminRepo { return &AdminRepo{db: db} }

func scanAdmin(row interface{ Scan(...any) error }) (model.AdminAccount, error) {
	var a model.AdminAccount
	err := row.Scan(&a.ID, &a.AdminName, &a.PasswordHash, &a.IsActive, &a.FailedAttempts,
		&a.LockedUntil, &a.SessionToken, &a.TokenExpiresAt, &a.LastLogin, &a.CreatedAt)
	return a, err
}

// GetByName fetches an admin account.
func (r *AdminRepo) GetByName(ctx context.Context, name string) (model.AdminAccount, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admin_accounts WHERE admin_name = ? LIMIT 1", name))
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrAdminNotFound
	}
	return a, err
}

// Authenticate verifies operator credentials and applies the lockout
// discipline: a locked account is rejected before the hash is checked (so
// response timing does not reveal whether the lockout has expired), the
// fifth consecutive failure locks the account for the cooldown window, and
// a success resets the counter and mints a fresh session token, replacing
// any previous one.
func (r *AdminRepo) Authenticate(ctx context.Context, name, password string) (AdminSession, error) {
	a, err := r.GetByName(ctx, name)
	if errors.Is(err, ErrAdminNotFound) {
		return AdminSession{}, ErrBadCredentials
	}
	if err != nil {
		return AdminSession{}, err
	}
	if !a.IsActive {
		return AdminSession{}, ErrAdminDisabled
	}
	now := time.Now().UTC()
	if a.Locked(now) {
		return AdminSession{}, ErrAdminLocked
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		attempts := a.FailedAttempts + 1
		if attempts >= maxFailedAttempts {
			lockedUntil := now.Add(lockoutCooldown)
			_, uerr := r.db.ExecContext(ctx,
				"UPDATE admin_accounts SET failed_attempts = ?, locked_until = ? WHERE id = ?",
				attempts, lockedUntil, a.ID)
			if uerr != nil {
				return AdminSession{}, uerr
			}
			return AdminSession{}, ErrAdminLocked
		}
		if _, uerr := r.db.ExecContext(ctx,
			"UPDATE admin_accounts SET failed_attempts = ? WHERE id = ?", attempts, a.ID); uerr != nil {
			return AdminSession{}, uerr
		}
		return AdminSession{}, ErrBadCredentials
	}

	token := uuid.NewString()
	exp := now.Add(adminSessionTTL)
	if _, err := r.db.ExecContext(ctx,
		`UPDATE admin_accounts SET failed_attempts = 0, locked_until = NULL,
			session_token = ?, token_expires_at = ?, last_login = ? WHERE id = ?`,
		token, exp, now, a.ID); err != nil {
		return AdminSession{}, err
	}
	return AdminSession{AdminName: a.AdminName, Token: token, ExpiresAt: exp}, nil
}

// ValidateToken resolves a session token to its admin account, rejecting
// expired or unknown tokens.
func (r *AdminRepo) ValidateToken(ctx context.Context, token string) (model.AdminAccount, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admin_accounts WHERE session_token = ? LIMIT 1", token))
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrAdminTokenExpired
	}
	if err != nil {
		return a, err
	}
	if !a.IsActive {
		return a, ErrAdminDisabled
	}
	if a.TokenExpiresAt == nil || time.Now().UTC().After(*a.TokenExpiresAt) {
		return a, ErrAdminTokenExpired
	}
	return a, nil
}

// ClearToken ends the admin session (logout).
func (r *AdminRepo) ClearToken(ctx context.Context, adminName string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE admin_accounts SET session_token = NULL, token_expires_at = NULL WHERE admin_name = ?",
		adminName)
	return err
}

// Create inserts a new admin account with an already-hashed password.
func (r *AdminRepo) Create(ctx context.Context, name, passwordHash string) (int64, error) {
	id, err := r.db.InsertReturningID(ctx,
		"INSERT INTO admin_accounts (admin_name, password_hash, is_active) VALUES (?,?,?)",
		name, passwordHash, true)
	if err != nil && r.db.Dialect.IsDuplicate(err) {
		return 0, ErrConflict
	}
	return id, err
}

// SetActive enables or disables an account.  Disabling also drops any
// live session token.
func (r *AdminRepo) SetActive(ctx context.Context, name string, active bool) error {
	q := "UPDATE admin_accounts SET is_active = ? WHERE admin_name = ?"
	if !active {
		q = "UPDATE admin_accounts SET is_active = ?, session_token = NULL, token_expires_at = NULL WHERE admin_name = ?"
	}
	res, err := r.db.ExecContext(ctx, q, active, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// Log appends one entry to the admin activity log.  The log is write-only
// from the application's point of view except for the review listing.
func (r *AdminRepo) Log(ctx context.Context, e model.AdminLogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_activity_log (admin_name, action, outcome, ip, user_agent, detail)
		 VALUES (?,?,?,?,?,?)`,
		e.AdminName, e.Action, e.Outcome, e.IP, e.UserAgent, e.Detail)
	return err
}

// RecentLog returns the newest log entries for security review.
func (r *AdminRepo) RecentLog(ctx context.Context, limit int) ([]model.AdminLogEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin_name, action, outcome, ip, user_agent, detail, created_at
		 FROM admin_activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AdminLogEntry
	for rows.Next() {
		var e model.AdminLogEntry
		if err := rows.Scan(&e.ID, &e.AdminName, &e.Action, &e.Outcome,
			&e.IP, &e.UserAgent, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
