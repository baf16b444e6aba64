package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

const reviewColumns = "id, bud_id, user_id, rating, content, aroma_tags, effect_tags, media_url, created_at"

// ReviewRepo encapsulates all queries against the reviews table.  One
// review per (user, bud) is enforced by a UNIQUE constraint, so concurrent
// duplicates lose at the schema rather than racing a pre-check.
type ReviewRepo struct{ db *database.DB }

func NewReviewRepo(db *database.DB) *ReviewRepo { return &ReviewRepo{db: db} }

func scanReview(row interface{ Scan(...any) error }) (model.Review, error) {
	var v model.Review
	err := row.Scan(&v.ID, &v.BudID, &v.UserID, &v.Rating, &v.Content,
		&v.AromaTags, &v.EffectTags, &v.MediaURL, &v.CreatedAt)
	return v, err
}

// Create inserts a review and populates v.ID.  A second review for the
// same bud by the same user returns ErrDuplicateReview.
func (r *ReviewRepo) Create(ctx context.Context, v *model.Review) error {
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO reviews (bud_id, user_id, rating, content, aroma_tags, effect_tags, media_url)
		 VALUES (?,?,?,?,?,?,?)`,
		v.BudID, v.UserID, v.Rating, v.Content, v.AromaTags, v.EffectTags, v.MediaURL)
	if err != nil {
		if r.db.Dialect.IsDuplicate(err) {
			return ErrDuplicateReview
		}
		return err
	}
	v.ID = id
	return nil
}

// ListByBud returns the reviews for one bud, newest first.
func (r *ReviewRepo) ListByBud(ctx context.Context, budID int64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE bud_id = ? ORDER BY id DESC", budID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		v, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByUser returns one user's reviews, newest first.
func (r *ReviewRepo) ListByUser(ctx context.Context, userID int64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		v, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes the caller's own review.
func (r *ReviewRepo) Delete(ctx context.Context, reviewID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM reviews WHERE id = ? AND user_id = ?", reviewID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reviews WHERE id = ?", reviewID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return sql.ErrNoRows
		}
		return ErrForbidden
	}
	return nil
}

// AverageRating returns the mean rating and count for one bud.
func (r *ReviewRepo) AverageRating(ctx context.Context, budID int64) (float64, int64, error) {
	var (
		avg sql.NullFloat64
		n   int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM reviews WHERE bud_id = ?", budID).Scan(&avg, &n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, err
	}
	return avg.Float64, n, nil
}
