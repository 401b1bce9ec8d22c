package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const MessageMaxBodyLength = 2000

var ErrMessageBodyTooLong = fmt.Errorf("message body exceeds %d characters", MessageMaxBodyLength)
var ErrMessageBodyEmpty = errors.New("message cannot be empty")
var ErrMessageMediaMissing = errors.New("media message requires a media url")

// Message is one entry of the chat feed. The server assigns ID, which
// increases monotonically; the feed is ordered oldest first.
type Message struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Message      string      `json:"message"`
	Timestamp    string      `json:"timestamp"`
	MessageType  MessageType `json:"messageType,omitempty"`
	MediaURL     string      `json:"mediaUrl,omitempty"`
	AuthorUserID *int64      `json:"authorUserId,omitempty"`
}

// Type returns the message type, defaulting to text.
func (m *Message) Type() MessageType {
	return ParseMessageType(string(m.MessageType))
}

// IsOwnedBy reports whether the session authored the message. The author
// id is authoritative when the server sent one; otherwise usernames are
// compared.
func (m *Message) IsOwnedBy(s *Session) bool {
	if s == nil {
		return false
	}
	if m.AuthorUserID != nil {
		return *m.AuthorUserID == s.UserID
	}
	return m.Username == s.Username
}

// Preview returns at most n runes of the text, or a media placeholder when
// the text is empty.
func (m *Message) Preview(n int) string {
	text := strings.TrimSpace(m.Message)
	if text == "" {
		switch m.Type() {
		case MessageImage:
			return "[image]"
		case MessageAudio:
			return "[audio]"
		}
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}

// Validate checks a message about to be stored. Text may be empty only
// when a media attachment is present.
func (m *Message) Validate() error {
	if m.Type().IsMedia() {
		if strings.TrimSpace(m.MediaURL) == "" {
			return ErrMessageMediaMissing
		}
	} else if strings.TrimSpace(m.Message) == "" {
		return ErrMessageBodyEmpty
	}
	if utf8.RuneCountInString(m.Message) > MessageMaxBodyLength {
		return ErrMessageBodyTooLong
	}
	return nil
}
