// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmailAlreadyExists indicates that the user with the given email already exists.
	ErrEmailAlreadyExists = errors.New("User already exists")
	// ErrUserNotFound indicates that the user is not found.
	ErrUserNotFound = errors.New("User not found")
	// ErrWrongPassword indicates the wrong credentials for the given email.
	ErrWrongPassword = errors.New("Invalid credentials")
	// ErrIncompleteUser indicates a stored user without a password hash.
	ErrIncompleteUser = errors.New("User record incomplete. Contact support.")
	// ErrUnauthorized indicates a request without a caller identity.
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrForbidden indicates that the caller is not allowed to perform the operation.
	ErrForbidden = errors.New("Forbidden")
)

// User statuses.
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
)

// User holds account and aggregate balance data of a member.
type User struct {
	ID             string          `json:"uid"`
	Email          string          `json:"email"`
	Username       string          `json:"username,omitempty"`
	PasswordHash   string          `json:"-"`
	Status         string          `json:"status"`
	IsAdmin        bool            `json:"isAdmin"`
	CreatedAt      time.Time       `json:"createdAt"`
	TotalDeposits  decimal.Decimal `json:"totalDeposits"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
	TotalRewards   decimal.Decimal `json:"totalRewards"`
}

// CreateUserParams holds data needed for User creation.
type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	Status       string
	IsAdmin      bool
}

// Caller is the verified identity a request is made on behalf of.
type Caller struct {
	UserID  string
	Email   string
	Status  string
	IsAdmin bool
}
