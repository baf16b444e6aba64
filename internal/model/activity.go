package model

import "time"

// Activity statuses.
const (
	ActivityOpen   = "open"
	ActivityJudged = "judged"
	ActivityClosed = "closed"
)

// Activity is a time-boxed judged contest accepting bud submissions while
// the registration window [OpensAt, ClosesAt] is open.
type Activity struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	OpensAt     time.Time `json:"opens_at"`
	ClosesAt    time.Time `json:"closes_at"`
	FirstPrize  *string   `json:"first_prize,omitempty"`
	SecondPrize *string   `json:"second_prize,omitempty"`
	ThirdPrize  *string   `json:"third_prize,omitempty"`
	Eligibility string    `json:"eligibility"` // "any", "grower", "budtender"
	Status      string    `json:"status"`
	CreatedBy   *string   `json:"created_by,omitempty"` // admin name
	CreatedAt   time.Time `json:"created_at"`
}

// ActivityParticipant links a user's bud submission to an activity.  The
// (activity, user, bud) triple is unique: the same strain cannot be
// entered twice into one contest.
type ActivityParticipant struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	UserID     int64     `json:"user_id"`
	BudID      int64     `json:"bud_id"`
	Rank       *int      `json:"rank,omitempty"`
	Prize      *string   `json:"prize,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
}
