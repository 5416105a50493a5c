package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAliasTaken    = errors.New("alias bound to another identity")
	ErrInvalidPolicy = errors.New("invalid alias conflict policy")
	ErrClosed        = errors.New("store closed")
)
