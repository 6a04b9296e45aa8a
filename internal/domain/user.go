package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Account validation limits.
const (
	MinUserNameLength = 2
	MinPasswordLength = 6
)

// User is an account that owns boards.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser constructs a user from an already-hashed password.
func NewUser(id, name, email, passwordHash string, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinUserNameLength {
		return User{}, ErrInvalidName
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return User{}, ErrInvalidPassword
	}
	return User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now.UTC(),
	}, nil
}

// NormalizeEmail trims, lowercases, and syntax-checks an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidateRegistration checks name, email, and password before hashing.
func ValidateRegistration(name, email, password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinUserNameLength {
		return ErrInvalidName
	}
	return ValidateLogin(email, password)
}

// ValidateLogin checks credential shape.
func ValidateLogin(email, password string) error {
	if _, err := NormalizeEmail(email); err != nil {
		return err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
