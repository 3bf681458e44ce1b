package models

import "time"

// Account is an authentication record owned by the local provider.
type Account struct {
	UID          string    `json:"uid" db:"uid"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuthSession is a server-side session row backing an issued token.
type AuthSession struct {
	ID        string    `json:"id" db:"id"`
	UID       string    `json:"uid" db:"uid"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *AuthSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Credentials are returned by the authentication provider on sign-in.
type Credentials struct {
	Token     string    `json:"token"`
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Registration is a self-service sign-up request.
type Registration struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=6"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	ContactNumber string `json:"contactNumber" validate:"omitempty,max=32"`
}
