package model

import "time"

// AdminAccount lives in its own identity space, separate from User.  After
// five consecutive failed verifications the account is locked until
// LockedUntil; a success resets the counter and overwrites SessionToken,
// so each account has at most one active session.
type AdminAccount struct {
	ID             int64
	AdminName      string
	PasswordHash   string
	IsActive       bool
	FailedAttempts int
	LockedUntil    *time.Time
	SessionToken   *string
	TokenExpiresAt *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
}

// Locked reports whether the account is inside its lockout window.
func (a AdminAccount) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// AdminLogEntry is one row of the append-only admin activity log.  The log
// is for security review only and never consulted for authorization.
type AdminLogEntry struct {
	ID        int64     `json:"id"`
	AdminName string    `json:"admin_name"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is a single admin_settings row.
type Setting struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registration modes stored under the "registration_mode" setting.
const (
	RegistrationPublic       = "public"
	RegistrationReferralOnly = "referral_only"
)
