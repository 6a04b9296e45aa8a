package app

import (
	"errors"
	"fmt"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrAuthUnavailable    = errors.New("authentication is not configured")
)
