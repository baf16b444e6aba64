// Package queue defines the payloads exchanged over the message broker and
// the background consumer that turns them into outgoing mail.
package queue

// Event kinds carried on the account.notifications queue.
const (
	KindUserRegistered         = "user.registered"
	KindUserApproved           = "user.approved"
	KindPasswordResetRequested = "password.reset_requested"
)

// NotificationEvent is published whenever an account event should reach the
// affected user by mail.  It carries everything the consumer needs so no
// database lookup happens on the consuming side.
type NotificationEvent struct {
	Kind       string `json:"kind"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Link       string `json:"link,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
