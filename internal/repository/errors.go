// Package repository contains data access logic separated from HTTP
// handlers.  Sentinel errors defined here let handlers map failure
// scenarios to status codes without inspecting driver error text; backend
// differences in duplicate-key detection live behind Dialect.IsDuplicate.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists and ErrEmailExists distinguish which unique column a
// signup collided with, so validation messages stay specific.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// ErrBadReferralCode is returned when a supplied referral code matches no
// user.
var ErrBadReferralCode = errors.New("invalid referral code")

// ErrReferralCodeTaken is returned when a generated referral code collides
// with an existing one.  Callers retry with a fresh code.
var ErrReferralCodeTaken = errors.New("referral code already taken")

// ErrBudNotFound is returned when a bud lookup matches no row.
var ErrBudNotFound = errors.New("bud not found")

// ErrDuplicateReview is returned when a user reviews the same bud twice.
var ErrDuplicateReview = errors.New("review already exists for this bud")

// ErrActivityNotFound is returned when an activity lookup matches no row.
var ErrActivityNotFound = errors.New("activity not found")

// ErrAlreadyJoined is returned when the (activity, user, bud) triple is
// submitted a second time.
var ErrAlreadyJoined = errors.New("bud already submitted to this activity")

// ErrActivityClosed is returned when joining outside the registration
// window.
var ErrActivityClosed = errors.New("activity registration is closed")

// Admin authentication failures.  ErrAdminLocked deliberately carries no
// remaining-cooldown detail.
var (
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminDisabled     = errors.New("admin account disabled")
	ErrAdminLocked       = errors.New("admin account temporarily locked")
	ErrBadCredentials    = errors.New("invalid credentials")
	ErrAdminTokenExpired = errors.New("admin session expired")
)

// ErrTokenInvalid covers single-use tokens (email verification, password
// reset) that are unknown, expired or already redeemed.
var ErrTokenInvalid = errors.New("token invalid or expired")
