package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrUnauthenticated = errors.New("unauthenticated")
)
