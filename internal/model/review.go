package model

import "time"

// Review is one user's evaluation of one bud.  The (bud, user) pair is
// unique at the schema level.
type Review struct {
	ID         int64     `json:"id"`
	BudID      int64     `json:"bud_id"`
	UserID     int64     `json:"user_id"`
	Rating     int       `json:"rating"` // 1-5
	Content    *string   `json:"content,omitempty"`
	AromaTags  *string   `json:"aroma_tags,omitempty"`  // comma-separated
	EffectTags *string   `json:"effect_tags,omitempty"` // comma-separated
	MediaURL   *string   `json:"media_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
