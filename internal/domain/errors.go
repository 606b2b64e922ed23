package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so callers can decide what to tell the acting user
// without leaking infrastructure details. ErrNotFound deliberately covers
// wrong, already-used and never-issued codes alike.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRateLimited      = errors.New("rate limited")
	ErrDelivery         = errors.New("delivery failed")
	ErrTimeout          = errors.New("timed out")
)
