package domain

import (
	"errors"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserStatus is the presence state shown next to a user in chat.
type UserStatus string

const (
	StatusActive  UserStatus = "Active"
	StatusAway    UserStatus = "Away"
	StatusOffline UserStatus = "Offline"
)

const DefaultAvatar = "default_avatar.png"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password length should be greater than 5")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrOTPNotFound        = errors.New("otp not found, please login again")
	ErrOTPExpired         = errors.New("otp expired, please login again")
	ErrOTPInvalid         = errors.New("invalid otp")
	ErrOTPRateLimited     = errors.New("otp recently sent, please wait before retrying")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrSessionRevoked     = errors.New("session revoked, please sign in again")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrAlreadyFavorite    = errors.New("book already in favorites")
	ErrNotFavorite        = errors.New("book not found in favorites")
)

// ValidUserStatus reports whether s is one of the enumerated presence values.
func ValidUserStatus(s UserStatus) bool {
	switch s {
	case StatusActive, StatusAway, StatusOffline:
		return true
	}
	return false
}

// User is a marketplace account. Secrets never leave the service layer:
// every hash field is excluded from JSON.
type User struct {
	ID                   string     `json:"_id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Phone                string     `json:"phone,omitempty"`
	PasswordHash         string     `json:"-"`
	Address              string     `json:"address,omitempty"`
	Avatar               string     `json:"avatar"`
	Role                 string     `json:"role"`
	BookListings         []string   `json:"book_listings"`
	Favorites            []string   `json:"favorites"`
	NotificationsEnabled bool       `json:"notifications"`
	Status               UserStatus `json:"status"`
	LastActivity         time.Time  `json:"lastActivity"`

	ResetTokenHash      string     `json:"-"`
	ResetTokenExpires   *time.Time `json:"-"`
	OTPHash             string     `json:"-"`
	OTPExpires          *time.Time `json:"-"`
	OTPAttempts         int        `json:"-"`
	FailedLoginAttempts int        `json:"-"`
	LockoutUntil        *time.Time `json:"-"`
	SessionVersion      int        `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsLocked reports whether sign-in is currently refused for the account.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

// HasFavorite reports whether bookID is already in the user's favorites.
func (u *User) HasFavorite(bookID string) bool {
	for _, id := range u.Favorites {
		if id == bookID {
			return true
		}
	}
	return false
}

// UserSummary is the public projection embedded in other resources.
type UserSummary struct {
	ID     string     `json:"_id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Avatar string     `json:"avatar"`
	Role   string     `json:"role,omitempty"`
	Status UserStatus `json:"status,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   u.Role,
		Status: u.Status,
	}
}
