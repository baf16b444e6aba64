package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kwanjai/budbook/internal/database"
)

// SingleUseTokenRepo serves both email_verifications and password_resets:
// the two tables share one shape (owner, token, expiry, used flag) and one
// issue/redeem contract.  Tokens are uuid strings, valid once.
type SingleUseTokenRepo struct {
	db    *database.DB
	table string
}

func NewEmailVerificationRepo(db *database.DB) *SingleUseTokenRepo {
	return &SingleUseTokenRepo{db: db, table: "email_verifications"}
}

func NewPasswordResetRepo(db *database.DB) *SingleUseTokenRepo {
	return &SingleUseTokenRepo{db: db, table: "password_resets"}
}

// Issue creates a fresh token for the user with the given lifetime and
// returns its value.
func (r *SingleUseTokenRepo) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO "+r.table+" (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Redeem consumes a token and returns its owner.  Unknown, expired and
// already-used tokens all collapse into ErrTokenInvalid; the redemption
// itself runs in a transaction so a token can never be consumed twice.
func (r *SingleUseTokenRepo) Redeem(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := r.db.WithTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		var (
			id        int64
			expiresAt time.Time
			used      bool
		)
		err := tx.QueryRowContext(ctx,
			"SELECT user_id, expires_at, used FROM "+r.table+" WHERE token = ? LIMIT 1",
			token).Scan(&id, &expiresAt, &used)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if used || time.Now().UTC().After(expiresAt) {
			return ErrTokenInvalid
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE "+r.table+" SET used = ? WHERE token = ? AND used = ?",
			true, token, false)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrTokenInvalid
		}
		userID = id
		return nil
	})
	return userID, err
}
