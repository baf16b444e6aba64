package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

const userColumns = `id, username, email, password_hash, is_grower, is_budtender, is_consumer,
	is_verified, is_approved, approved_at, approved_by, referred_by, referral_code,
	phone, line_id, created_at`

// UserRepo encapsulates all queries against the users table.
type UserRepo struct{ db *database.DB }

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{db: db} }

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsGrower, &u.IsBudtender, &u.IsConsumer,
		&u.IsVerified, &u.IsApproved, &u.ApprovedAt, &u.ApprovedBy,
		&u.ReferredBy, &u.ReferralCode, &u.Phone, &u.LineID, &u.CreatedAt)
	return u, err
}

// Create inserts a new user and populates u.ID.  Username, email and
// referral code are unique; collisions surface as the matching sentinel.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO users (username, email, password_hash, is_grower, is_budtender, is_consumer,
			is_verified, is_approved, approved_at, approved_by, referred_by, referral_code)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.PasswordHash, u.IsGrower, u.IsBudtender, u.IsConsumer,
		u.IsVerified, u.IsApproved, u.ApprovedAt, u.ApprovedBy, u.ReferredBy, u.ReferralCode)
	if err != nil {
		if r.db.Dialect.IsDuplicate(err) {
			msg := strings.ToLower(err.Error())
			switch {
			case strings.Contains(msg, "referral"):
				return ErrReferralCodeTaken
			case strings.Contains(msg, "email"):
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return err
	}
	u.ID = id
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1", strings.TrimSpace(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByReferralCode resolves a referral code to its owner.
func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE referral_code = ? LIMIT 1", strings.TrimSpace(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrBadReferralCode
	}
	return u, err
}

// ListPending returns users awaiting approval, oldest first.  When
// referrerID is non-zero only that referrer's referees are returned.
func (r *UserRepo) ListPending(ctx context.Context, referrerID int64) ([]model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
		  WHERE is_approved = ? AND referred_by IS NOT NULL`
	args := []any{false}
	if referrerID != 0 {
		q += " AND referred_by = ?"
		args = append(args, referrerID)
	}
	q += " ORDER BY created_at"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// List returns all users ordered by id (admin console).
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Approve flips a pending user to approved, stamping who approved and
// when.  Approving an already-approved user is a no-op (the transition is
// idempotent; which approver wins a concurrent race is acceptable).
func (r *UserRepo) Approve(ctx context.Context, userID, approverID int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_approved = ?, approved_at = ?, approved_by = ? WHERE id = ? AND is_approved = ?",
		true, time.Now().UTC(), approverID, userID, false)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// either unknown user or already approved; distinguish for the caller
		var exists int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = ?", userID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrUserNotFound
		}
	}
	return nil
}

// Delete hard-deletes a user; dependents go with it via ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile updates the self-service profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, phone, lineID *string, grower, budtender, consumer bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone = ?, line_id = ?, is_grower = ?, is_budtender = ?, is_consumer = ?
		 WHERE id = ?`,
		phone, lineID, grower, budtender, consumer, userID)
	return err
}

// BindReferrer attaches a referral code to an existing account, moving it
// into the pending-approval state.  A user who already has a referrer
// keeps the original one.
func (r *UserRepo) BindReferrer(ctx context.Context, userID, referrerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET referred_by = ?, is_approved = ?, approved_at = NULL, approved_by = NULL
		 WHERE id = ? AND referred_by IS NULL`,
		referrerID, false, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// SetVerified marks the email as verified.
func (r *UserRepo) SetVerified(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET is_verified = ? WHERE id = ?", true, userID)
	return err
}

// SetPassword replaces the credential hash.
func (r *UserRepo) SetPassword(ctx context.Context, userID int64, hash string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	return err
}

// BootstrapID returns the id of the designated first account (the lowest
// id), which is exempt from the referral gate and may approve anyone.
func (r *UserRepo) BootstrapID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, "SELECT MIN(id) FROM users").Scan(&id)
	return id, err
}
