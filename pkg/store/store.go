// Package store provides SQLite-backed persistence for users, messages and
// moderation reports.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/roulette/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Store provides database access for all chat entities.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		password_hash TEXT    NOT NULL,
		created_at    TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS messages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		username     TEXT    NOT NULL,
		message      TEXT    NOT NULL DEFAULT '',
		created_at   TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS reports (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  INTEGER NOT NULL,
		reporter_id INTEGER NOT NULL,
		reason      TEXT    NOT NULL DEFAULT '',
		created_at  TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			// media messages
			version: 2,
			statements: []string{
				"ALTER TABLE messages ADD COLUMN message_type TEXT NOT NULL DEFAULT 'text'",
				"ALTER TABLE messages ADD COLUMN media_url TEXT NOT NULL DEFAULT ''",
			},
			ignoreErrors: true,
		},
		{
			// settings and presence
			version: 3,
			statements: []string{
				"ALTER TABLE users ADD COLUMN notifications_enabled INTEGER NOT NULL DEFAULT 1",
				"ALTER TABLE users ADD COLUMN last_seen TEXT",
			},
			ignoreErrors: true,
		},
		{
			version: 4,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen)",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

func (s *Store) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func parseDBTimePtr(value sql.NullString) (time.Time, error) {
	if !value.Valid || value.String == "" {
		return time.Time{}, nil
	}
	return parseDBTime(value.String)
}

// ---- Users ----

// CreateUser creates a new user and returns it with the assigned ID.
func (s *Store) CreateUser(username, passwordHash string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	createdAt := s.now()
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, password_hash, notifications_enabled, created_at) VALUES (?, ?, 1, ?)",
		username, passwordHash, formatDBTime(createdAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.User{
		ID:                   id,
		Username:             username,
		NotificationsEnabled: true,
		CreatedAt:            createdAt.Truncate(time.Second),
	}, nil
}

const userColumns = "id, username, notifications_enabled, last_seen, created_at"

func scanUser(row interface{ Scan(...any) error }, extra ...any) (*model.User, error) {
	u := &model.User{}
	var notif int
	var lastSeen sql.NullString
	var createdAt string
	dest := append([]any{&u.ID, &u.Username, &notif, &lastSeen, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.NotificationsEnabled = notif != 0
	var err error
	if u.LastSeen, err = parseDBTimePtr(lastSeen); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername retrieves a user and its password hash.
func (s *Store) GetUserByUsername(username string) (*model.User, string, error) {
	var hash string
	row := s.db.QueryRowContext(context.Background(), "SELECT "+userColumns+", password_hash FROM users WHERE username = ?", username)
	u, err := scanUser(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: get user by name: %w", err)
	}
	return u, hash, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(id int64) (*model.User, error) {
	row := s.db.QueryRowContext(context.Background(), "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// SetNotifications stores the user's notification preference.
func (s *Store) SetNotifications(userID int64, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.ExecContext(context.Background(), "UPDATE users SET notifications_enabled = ? WHERE id = ?", v, userID)
	if err != nil {
		return fmt.Errorf("store: set notifications: %w", err)
	}
	return requireRow(res)
}

// TouchLastSeen marks the user active at the given time.
func (s *Store) TouchLastSeen(userID int64, at time.Time) error {
	res, err := s.db.ExecContext(context.Background(), "UPDATE users SET last_seen = ? WHERE id = ?", formatDBTime(at), userID)
	if err != nil {
		return fmt.Errorf("store: touch last seen: %w", err)
	}
	return requireRow(res)
}

// CountOnline counts users active at or after since.
func (s *Store) CountOnline(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM users WHERE last_seen IS NOT NULL AND last_seen >= ?", formatDBTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count online: %w", err)
	}
	return n, nil
}

// ---- Messages ----

// CreateMessage stores msg, assigning its ID and timestamp.
func (s *Store) CreateMessage(msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}
	if msg.AuthorUserID == nil {
		return fmt.Errorf("store: create message: missing author")
	}
	createdAt := s.now()
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO messages (user_id, username, message, message_type, media_url, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		*msg.AuthorUserID, msg.Username, msg.Message, msg.Type().String(), msg.MediaURL, formatDBTime(createdAt))
	if err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}
	msg.ID, _ = res.LastInsertId()
	msg.MessageType = msg.Type()
	msg.Timestamp = createdAt.Truncate(time.Second).Format(time.RFC3339)
	return nil
}

// ListMessages returns the newest limit messages, oldest first.
func (s *Store) ListMessages(limit int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, user_id, username, message, message_type, media_url, created_at FROM (
			SELECT * FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		var userID int64
		var msgType, createdAt string
		if err := rows.Scan(&m.ID, &userID, &m.Username, &m.Message, &msgType, &m.MediaURL, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.AuthorUserID = &userID
		m.MessageType = model.ParseMessageType(msgType)
		ts, err := parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Timestamp = ts.Format(time.RFC3339)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteMessage deletes a message written by userID.
func (s *Store) DeleteMessage(messageID, userID int64) error {
	ctx := context.Background()
	var author int64
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM messages WHERE id = ?", messageID).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}
	if author != userID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND user_id = ?", messageID, userID); err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}
	return nil
}

// ---- Reports ----

// CreateReport records a moderation report.
func (s *Store) CreateReport(messageID, reporterID int64, reason string) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO reports (message_id, reporter_id, reason, created_at) VALUES (?, ?, ?, ?)",
		messageID, reporterID, reason, formatDBTime(s.now()))
	if err != nil {
		return fmt.Errorf("store: create report: %w", err)
	}
	return nil
}

// CountReports returns the number of stored reports.
func (s *Store) CountReports() (int, error) {
	var n int
	if err := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM reports").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count reports: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
