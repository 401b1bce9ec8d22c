package store

import (
	"errors"
	"time"

	"github.com/NicolasHaas/roulette/pkg/model"
)

var (
	// ErrUsernameTaken is returned by CreateUser for a duplicate username.
	ErrUsernameTaken = errors.New("store: username already exists")
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrForbidden is returned when a user acts on another user's message.
	ErrForbidden = errors.New("store: not the message author")
)

// DataStore defines the persistence interface for the chat backend.
// Implementations are the SQLite store and an in-memory store for tests.
type DataStore interface {
	// Close closes the underlying storage connection.
	Close() error

	// ---- Users ----

	// CreateUser creates a user with notifications enabled.
	CreateUser(username, passwordHash string) (*model.User, error)

	// GetUserByUsername returns the user and its password hash.
	// Returns (nil, "", nil) if not found.
	GetUserByUsername(username string) (*model.User, string, error)

	// GetUser retrieves a user by ID. Returns (nil, nil) if not found.
	GetUser(id int64) (*model.User, error)

	// SetNotifications stores the user's notification preference.
	SetNotifications(userID int64, enabled bool) error

	// TouchLastSeen marks the user active at the given time.
	TouchLastSeen(userID int64, at time.Time) error

	// CountOnline counts users active at or after since.
	CountOnline(since time.Time) (int, error)

	// ---- Messages ----

	// CreateMessage stores msg, assigning its ID and timestamp.
	CreateMessage(msg *model.Message) error

	// ListMessages returns the newest limit messages, oldest first.
	ListMessages(limit int) ([]model.Message, error)

	// DeleteMessage deletes a message written by userID.
	DeleteMessage(messageID, userID int64) error

	// ---- Reports ----

	// CreateReport records a moderation report.
	CreateReport(messageID, reporterID int64, reason string) error

	// CountReports returns the number of stored reports.
	CountReports() (int, error)
}

// Compile-time checks.
var (
	_ DataStore = (*Store)(nil)
	_ DataStore = (*MemoryStore)(nil)
)
