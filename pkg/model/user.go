package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
var ErrPasswordEmpty = errors.New("password must not be empty")

// User represents a registered account on the backend.
type User struct {
	ID                   int64     `json:"id"`
	Username             string    `json:"username"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	LastSeen             time.Time `json:"last_seen"`
	CreatedAt            time.Time `json:"created_at"`
}

// Session returns the client-side identity for this user.
func (u *User) Session() *Session {
	return &Session{
		UserID:               u.ID,
		Username:             u.Username,
		NotificationsEnabled: u.NotificationsEnabled,
	}
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// ValidateCredentials is the client-side check run before any auth call:
// both fields must be filled in.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameEmpty
	}
	if password == "" {
		return ErrPasswordEmpty
	}
	return nil
}
