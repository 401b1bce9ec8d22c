package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NicolasHaas/roulette/pkg/model"
)

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextUserID    int64
	nextMessageID int64

	usersByID       map[int64]*memoryUser
	usersByUsername map[string]*memoryUser
	messages        map[int64]*model.Message
	reports         []memoryReport
}

type memoryUser struct {
	user model.User
	hash string
}

type memoryReport struct {
	messageID  int64
	reporterID int64
	reason     string
	createdAt  time.Time
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:             now,
		nextUserID:      1,
		nextMessageID:   1,
		usersByID:       make(map[int64]*memoryUser),
		usersByUsername: make(map[string]*memoryUser),
		messages:        make(map[int64]*model.Message),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateUser creates a new user and returns it with the assigned ID.
func (s *MemoryStore) CreateUser(username, passwordHash string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return nil, ErrUsernameTaken
	}
	u := &memoryUser{
		user: model.User{
			ID:                   s.nextUserID,
			Username:             username,
			NotificationsEnabled: true,
			CreatedAt:            s.now().UTC().Truncate(time.Second),
		},
		hash: passwordHash,
	}
	s.nextUserID++
	s.usersByID[u.user.ID] = u
	s.usersByUsername[username] = u
	copyUser := u.user
	return &copyUser, nil
}

// GetUserByUsername retrieves a user and its password hash.
func (s *MemoryStore) GetUserByUsername(username string) (*model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByUsername[username]
	if !ok {
		return nil, "", nil
	}
	copyUser := u.user
	return &copyUser, u.hash, nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, nil
	}
	copyUser := u.user
	return &copyUser, nil
}

// SetNotifications stores the user's notification preference.
func (s *MemoryStore) SetNotifications(userID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return ErrNotFound
	}
	u.user.NotificationsEnabled = enabled
	return nil
}

// TouchLastSeen marks the user active at the given time.
func (s *MemoryStore) TouchLastSeen(userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return ErrNotFound
	}
	u.user.LastSeen = at.UTC().Truncate(time.Second)
	return nil
}

// CountOnline counts users active at or after since.
func (s *MemoryStore) CountOnline(since time.Time) (int, error) {
	since = since.UTC().Truncate(time.Second)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.usersByID {
		if !u.user.LastSeen.IsZero() && !u.user.LastSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

// CreateMessage stores msg, assigning its ID and timestamp.
func (s *MemoryStore) CreateMessage(msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}
	if msg.AuthorUserID == nil {
		return fmt.Errorf("store: create message: missing author")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByID[*msg.AuthorUserID]; !ok {
		return fmt.Errorf("store: create message: constraint failed: FOREIGN KEY constraint failed")
	}
	msg.ID = s.nextMessageID
	s.nextMessageID++
	msg.MessageType = msg.Type()
	msg.Timestamp = s.now().UTC().Truncate(time.Second).Format(time.RFC3339)

	stored := *msg
	author := *msg.AuthorUserID
	stored.AuthorUserID = &author
	s.messages[stored.ID] = &stored
	return nil
}

// ListMessages returns the newest limit messages, oldest first.
func (s *MemoryStore) ListMessages(limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.messages))
	for id := range s.messages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit >= 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m := *s.messages[id]
		author := *m.AuthorUserID
		m.AuthorUserID = &author
		out = append(out, m)
	}
	return out, nil
}

// DeleteMessage deletes a message written by userID.
func (s *MemoryStore) DeleteMessage(messageID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	if *m.AuthorUserID != userID {
		return ErrForbidden
	}
	delete(s.messages, messageID)
	return nil
}

// CreateReport records a moderation report.
func (s *MemoryStore) CreateReport(messageID, reporterID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, memoryReport{
		messageID:  messageID,
		reporterID: reporterID,
		reason:     reason,
		createdAt:  s.now(),
	})
	return nil
}

// CountReports returns the number of stored reports.
func (s *MemoryStore) CountReports() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports), nil
}
