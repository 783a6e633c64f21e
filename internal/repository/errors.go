package repository

import "errors"

// Sentinel errors for the domain failure modes. Repositories and services
// return these (possibly wrapped); handlers translate them to HTTP codes
// with errors.Is. The core never logs or renders; it signals.
var (
	// ErrDuplicateName: room name collision. Recoverable; the caller can
	// retry with another name.
	ErrDuplicateName = errors.New("room name already taken")

	// ErrInvalidOrExpiredKey: invite key missing, expired, or already
	// consumed. Deliberately one error for all three; we don't confirm
	// key existence to whoever is probing tokens.
	ErrInvalidOrExpiredKey = errors.New("invite key is invalid or expired")

	// ErrWrongUser: the key exists and is valid but is scoped to someone
	// else. Kept distinct from ErrInvalidOrExpiredKey so the caller can
	// message it differently.
	ErrWrongUser = errors.New("invite key is valid for another user")

	// ErrNotFound: room, key, or user absent.
	ErrNotFound = errors.New("not found")

	// ErrTokenCollision: a freshly generated invite token already exists.
	// The engine rolls a new token and retries; callers never see this.
	ErrTokenCollision = errors.New("invite key token collision")

	// ErrForbidden: capability check failed at the boundary.
	ErrForbidden = errors.New("forbidden")
)
