package internal

import "github.com/google/uuid"

// NewSessionID mints the server-side session identifier embedded in every
// token issued for that session. Only first issuance calls this; refresh
// reuses the existing ID.
func NewSessionID() string {
	return uuid.NewString()
}

// NewTokenID mints a jti. Every individual token instance gets a fresh one,
// including both halves of a pair; the blacklist is keyed by it.
func NewTokenID() string {
	return uuid.NewString()
}
