package model

import "time"

// User represents a row in the `users` table.  Role flags are
// non-exclusive: an account can be a grower and a consumer at once.
// Approval fields drive the referral gate: a user with ReferredBy set
// starts unapproved and stays restricted until the referrer or an admin
// approves them.  The seeded first account is always approved.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsGrower     bool       `json:"is_grower"`
	IsBudtender  bool       `json:"is_budtender"`
	IsConsumer   bool       `json:"is_consumer"`
	IsVerified   bool       `json:"is_verified"`
	IsApproved   bool       `json:"is_approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`
	ReferredBy   *int64     `json:"referred_by,omitempty"`
	ReferralCode string     `json:"referral_code"`
	Phone        *string    `json:"phone,omitempty"`
	LineID       *string    `json:"line_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Roles returns the role names carried in the user's JWT.
func (u User) Roles() []string {
	var out []string
	if u.IsGrower {
		out = append(out, "GROWER")
	}
	if u.IsBudtender {
		out = append(out, "BUDTENDER")
	}
	if u.IsConsumer {
		out = append(out, "CONSUMER")
	}
	return out
}
