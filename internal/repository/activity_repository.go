package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

const activityColumns = `id, title, description, opens_at, closes_at,
	first_prize, second_prize, third_prize, eligibility, status, created_by, created_at`

// ActivityRepo encapsulates contests and their participant entries.
type ActivityRepo struct{ db *database.DB }

func NewActivityRepo(db *database.DB) *ActivityRepo { return &ActivityRepo{db: db} }

func scanActivity(row interface{ Scan(...any) error }) (model.Activity, error) {
	var a model.Activity
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.OpensAt, &a.ClosesAt,
		&a.FirstPrize, &a.SecondPrize, &a.ThirdPrize, &a.Eligibility,
		&a.Status, &a.CreatedBy, &a.CreatedAt)
	return a, err
}

// Create inserts a contest (admin console).
func (r *ActivityRepo) Create(ctx context.Context, a *model.Activity) error {
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO activities (title, description, opens_at, closes_at,
			first_prize, second_prize, third_prize, eligibility, status, created_by)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.Title, a.Description, a.OpensAt, a.ClosesAt,
		a.FirstPrize, a.SecondPrize, a.ThirdPrize, a.Eligibility, a.Status, a.CreatedBy)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetByID fetches one activity.
func (r *ActivityRepo) GetByID(ctx context.Context, id int64) (model.Activity, error) {
	a, err := scanActivity(r.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrActivityNotFound
	}
	return a, err
}

// ListOpen returns contests currently accepting submissions.
func (r *ActivityRepo) ListOpen(ctx context.Context) ([]model.Activity, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE status = ? AND opens_at <= ? AND closes_at >= ?
		 ORDER BY closes_at`, model.ActivityOpen, now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Join submits a bud to a contest.  The (activity, user, bud) triple is
// unique; re-submission returns ErrAlreadyJoined.  Submissions outside the
// registration window return ErrActivityClosed.
func (r *ActivityRepo) Join(ctx context.Context, activityID, userID, budID int64) (int64, error) {
	a, err := r.GetByID(ctx, activityID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	if a.Status != model.ActivityOpen || now.Before(a.OpensAt) || now.After(a.ClosesAt) {
		return 0, ErrActivityClosed
	}
	id, err := r.db.InsertReturningID(ctx,
		"INSERT INTO activity_participants (activity_id, user_id, bud_id) VALUES (?,?,?)",
		activityID, userID, budID)
	if err != nil {
		if r.db.Dialect.IsDuplicate(err) {
			return 0, ErrAlreadyJoined
		}
		return 0, err
	}
	return id, nil
}

// Participants lists a contest's entries in rank order (unranked last).
func (r *ActivityRepo) Participants(ctx context.Context, activityID int64) ([]model.ActivityParticipant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, activity_id, user_id, bud_id, final_rank, prize, joined_at
		 FROM activity_participants WHERE activity_id = ?
		 ORDER BY CASE WHEN final_rank IS NULL THEN 1 ELSE 0 END, final_rank, id`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ActivityParticipant
	for rows.Next() {
		var p model.ActivityParticipant
		if err := rows.Scan(&p.ID, &p.ActivityID, &p.UserID, &p.BudID,
			&p.Rank, &p.Prize, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignRank records judging results for one participant.
func (r *ActivityRepo) AssignRank(ctx context.Context, participantID int64, rank int, prize *string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE activity_participants SET final_rank = ?, prize = ? WHERE id = ?",
		rank, prize, participantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus moves a contest between open/judged/closed.
func (r *ActivityRepo) SetStatus(ctx context.Context, activityID int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE activities SET status = ? WHERE id = ?", status, activityID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrActivityNotFound
	}
	return nil
}
