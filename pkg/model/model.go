// Package model defines the core domain types for the Roulette chat client
// and its development backend.
package model

import "strings"

// MessageType classifies the payload a chat message carries.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
)

// ParseMessageType converts a wire string to a MessageType.
// Unknown or empty values are treated as text.
func ParseMessageType(s string) MessageType {
	switch MessageType(strings.ToLower(strings.TrimSpace(s))) {
	case MessageImage:
		return MessageImage
	case MessageAudio:
		return MessageAudio
	default:
		return MessageText
	}
}

// IsMedia reports whether the type requires a media URL.
func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageAudio
}

func (t MessageType) String() string {
	if t == "" {
		return string(MessageText)
	}
	return string(t)
}

// Session is the authenticated identity held by a running client.
// It is the only record the client persists across restarts.
type Session struct {
	UserID               int64  `json:"userId" yaml:"user_id"`
	Username             string `json:"username" yaml:"username"`
	NotificationsEnabled bool   `json:"notificationsEnabled" yaml:"notifications_enabled"`
}

// Clone returns a copy safe to hand out of a lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Same reports whether two sessions refer to the same identity.
func (s *Session) Same(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.UserID == other.UserID && s.Username == other.Username
}
