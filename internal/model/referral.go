package model

import "time"

// Referral is an auxiliary ledger row tracking how a referral code was
// used, with attribution metadata and lifecycle timestamps.  It is not
// authoritative for access control; that lives on User.
type Referral struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	ReferrerID  *int64     `json:"referrer_id,omitempty"`
	UTMSource   *string    `json:"utm_source,omitempty"`
	UTMMedium   *string    `json:"utm_medium,omitempty"`
	UTMCampaign *string    `json:"utm_campaign,omitempty"`
	ClientHash  *string    `json:"client_hash,omitempty"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	SignedUpAt  *time.Time `json:"signed_up_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}
