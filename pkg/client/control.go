// Package client implements the Roulette chat client engine: session
// handling, feed polling, notifications, composing and moderation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
	"github.com/NicolasHaas/roulette/pkg/version"
)

// ErrBackendUnavailable wraps transport failures (DNS, refused, timeout).
var ErrBackendUnavailable = errors.New("backend unavailable")

// APIError is a non-success response from a backend endpoint. Message is
// the backend's own error text when it sent one, otherwise a fallback.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// AuthAPI is the auth endpoint.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Register(ctx context.Context, username, password string) (*model.Session, error)
	FetchSettings(ctx context.Context, userID int64) (bool, error)
	UpdateSettings(ctx context.Context, userID int64, notificationsEnabled bool) error
}

// ChatAPI is the chat endpoint.
type ChatAPI interface {
	FeedSource
	PostMessage(ctx context.Context, req protocol.PostMessageRequest) error
	DeleteMessage(ctx context.Context, messageID, userID int64) error
	ReportMessage(ctx context.Context, messageID, userID int64, reason string) error
}

// APIClient talks JSON to the auth and chat endpoints.
type APIClient struct {
	AuthURL    string
	ChatURL    string
	HTTPClient *http.Client
}

// NewAPIClient creates a client for the given endpoint URLs.
func NewAPIClient(authURL, chatURL string) *APIClient {
	return &APIClient{
		AuthURL:    authURL,
		ChatURL:    chatURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends body (if any) as JSON and returns the raw response.
func (c *APIClient) do(ctx context.Context, method, target string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent("client"))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return resp, nil
}

// call performs a request and decodes a 2xx body into out (may be nil).
// Non-2xx responses become *APIError with the backend's message or fallback.
func (c *APIClient) call(ctx context.Context, method, target string, body, out any, fallback string) error {
	resp, err := c.do(ctx, method, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := protocol.ReadError(resp.Body)
		if msg == "" {
			msg = fallback
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := protocol.Decode(resp.Body, out); err != nil {
		return fmt.Errorf("client: %s: %w", fallback, err)
	}
	return nil
}

func (c *APIClient) auth(ctx context.Context, action, username, password, fallback string) (*model.Session, error) {
	if err := model.ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	req := protocol.AuthRequest{Action: action, Username: username, Password: password}
	var resp protocol.AuthResponse
	if err := c.call(ctx, http.MethodPost, c.AuthURL, req, &resp, fallback); err != nil {
		return nil, err
	}
	if resp.UserID <= 0 || resp.Username == "" {
		return nil, fmt.Errorf("client: %s: incomplete auth response", fallback)
	}
	return resp.Session(), nil
}

// Login authenticates an existing user.
func (c *APIClient) Login(ctx context.Context, username, password string) (*model.Session, error) {
	return c.auth(ctx, protocol.ActionLogin, username, password, "login failed")
}

// Register creates a user and logs it in.
func (c *APIClient) Register(ctx context.Context, username, password string) (*model.Session, error) {
	return c.auth(ctx, protocol.ActionRegister, username, password, "registration failed")
}

// FetchSettings returns the server-side notification flag for userID.
func (c *APIClient) FetchSettings(ctx context.Context, userID int64) (bool, error) {
	target, err := withQuery(c.AuthURL, "userId", strconv.FormatInt(userID, 10))
	if err != nil {
		return false, err
	}
	var resp protocol.SettingsResponse
	if err := c.call(ctx, http.MethodGet, target, nil, &resp, "failed to load settings"); err != nil {
		return false, err
	}
	return resp.NotificationsEnabled, nil
}

// UpdateSettings stores the notification flag server-side.
func (c *APIClient) UpdateSettings(ctx context.Context, userID int64, enabled bool) error {
	req := protocol.SettingsUpdate{UserID: userID, NotificationsEnabled: &enabled}
	return c.call(ctx, http.MethodPut, c.AuthURL, req, nil, "failed to save settings")
}

// FetchMessages returns the current feed snapshot, oldest first.
func (c *APIClient) FetchMessages(ctx context.Context) ([]model.Message, error) {
	var resp protocol.MessagesResponse
	if err := c.call(ctx, http.MethodGet, c.ChatURL, nil, &resp, "failed to load messages"); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		return []model.Message{}, nil
	}
	return resp.Messages, nil
}

// FetchOnlineCount returns the number of recently active users.
func (c *APIClient) FetchOnlineCount(ctx context.Context) (int, error) {
	target, err := withQuery(c.ChatURL, "action", protocol.ActionOnline)
	if err != nil {
		return 0, err
	}
	var resp protocol.OnlineResponse
	if err := c.call(ctx, http.MethodGet, target, nil, &resp, "failed to load online count"); err != nil {
		return 0, err
	}
	return resp.Online, nil
}

// PostMessage publishes a message.
func (c *APIClient) PostMessage(ctx context.Context, req protocol.PostMessageRequest) error {
	return c.call(ctx, http.MethodPost, c.ChatURL, req, nil, "failed to send message")
}

// DeleteMessage asks the backend to delete one of the user's messages.
func (c *APIClient) DeleteMessage(ctx context.Context, messageID, userID int64) error {
	req := protocol.DeleteMessageRequest{MessageID: messageID, UserID: userID}
	return c.call(ctx, http.MethodPut, c.ChatURL, req, nil, "failed to delete message")
}

// ReportMessage files a moderation report.
func (c *APIClient) ReportMessage(ctx context.Context, messageID, userID int64, reason string) error {
	req := protocol.ReportRequest{Action: protocol.ActionReport, MessageID: messageID, UserID: userID, Reason: reason}
	return c.call(ctx, http.MethodPost, c.ChatURL, req, nil, "failed to report message")
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("client: bad endpoint %q: %w", base, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
