package domain

import "errors"

var (
	// ErrValidation indicates a missing or malformed input field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")
	// ErrUnauthorized covers bad passwords and invalid, expired, absent or
	// superseded tokens. Callers never learn which.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates that no user or channel matched the request.
	ErrNotFound = errors.New("not found")
	// ErrUpload indicates a media store failure for a required asset.
	ErrUpload = errors.New("upload failed")
)
