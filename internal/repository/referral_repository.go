package repository

import (
	"context"
	"time"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

// ReferralRepo maintains the advisory referral ledger.  Rows track how a
// code travelled from first sight to a converted account; access control
// never reads this table.
type ReferralRepo struct{ db *database.DB }

func NewReferralRepo(db *database.DB) *ReferralRepo { return &ReferralRepo{db: db} }

// Track records one sighting of a referral code with attribution metadata
// and returns the ledger row id.
func (r *ReferralRepo) Track(ctx context.Context, ref *model.Referral) error {
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO referrals (code, referrer_id, utm_source, utm_medium, utm_campaign, client_hash)
		 VALUES (?,?,?,?,?,?)`,
		ref.Code, ref.ReferrerID, ref.UTMSource, ref.UTMMedium, ref.UTMCampaign, ref.ClientHash)
	if err != nil {
		return err
	}
	ref.ID = id
	return nil
}

// MarkSignedUp stamps the signup step for the newest untouched sighting of
// the code; when the code was never tracked beforehand a fresh row is
// written so the ledger stays complete.
func (r *ReferralRepo) MarkSignedUp(ctx context.Context, code string, referrerID int64, clientHash string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE referrals SET signed_up_at = ?
		 WHERE code = ? AND signed_up_at IS NULL`,
		now, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO referrals (code, referrer_id, client_hash, signed_up_at) VALUES (?,?,?,?)`,
		code, referrerID, clientHash, now)
	return err
}

// MarkVerified stamps the email-verification step.
func (r *ReferralRepo) MarkVerified(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE referrals SET verified_at = ? WHERE code = ? AND verified_at IS NULL",
		time.Now().UTC(), code)
	return err
}

// MarkConverted stamps the final approval step.
func (r *ReferralRepo) MarkConverted(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE referrals SET converted_at = ? WHERE code = ? AND converted_at IS NULL",
		time.Now().UTC(), code)
	return err
}

// ListByReferrer returns ledger rows attributed to one referrer.
func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, referrer_id, utm_source, utm_medium, utm_campaign, client_hash,
			first_seen_at, signed_up_at, verified_at, converted_at
		 FROM referrals WHERE referrer_id = ? ORDER BY id DESC`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Referral
	for rows.Next() {
		var ref model.Referral
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.ReferrerID,
			&ref.UTMSource, &ref.UTMMedium, &ref.UTMCampaign, &ref.ClientHash,
			&ref.FirstSeenAt, &ref.SignedUpAt, &ref.VerifiedAt, &ref.ConvertedAt); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
