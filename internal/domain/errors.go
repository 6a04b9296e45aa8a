package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidTitle    = errors.New("title must have at least 3 characters")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidColumnID = errors.New("invalid column id")
	ErrInvalidBoardID  = errors.New("invalid board id")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPassword = errors.New("password must be at least 6 characters long")
)
