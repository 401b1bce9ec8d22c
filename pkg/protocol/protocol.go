// Package protocol defines the JSON wire format shared by the chat client and
// the development backend: auth, chat, moderation and object-storage bodies.
package protocol

import "github.com/NicolasHaas/roulette/pkg/model"

const (
	// ActionLogin and ActionRegister select the auth operation.
	ActionLogin    = "login"
	ActionRegister = "register"

	// ActionOnline is the chat query parameter value for the online count.
	ActionOnline = "online"

	// ActionReport marks a chat POST as a moderation report.
	ActionReport = "report"

	// FeedLimit is how many of the most recent messages the chat endpoint returns.
	FeedLimit = 50

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes = 64 * 1024
)

// ----- Auth -----

type AuthRequest struct {
	Action   string `json:"action" validate:"required,oneof=login register"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful login or registration.
// NotificationsEnabled is absent on registration.
type AuthResponse struct {
	UserID               int64  `json:"userId"`
	Username             string `json:"username"`
	NotificationsEnabled *bool  `json:"notificationsEnabled,omitempty"`
}

// Session converts the response into a client session. A missing
// notification flag means enabled.
func (r *AuthResponse) Session() *model.Session {
	enabled := true
	if r.NotificationsEnabled != nil {
		enabled = *r.NotificationsEnabled
	}
	return &model.Session{
		UserID:               r.UserID,
		Username:             r.Username,
		NotificationsEnabled: enabled,
	}
}

type SettingsUpdate struct {
	UserID               int64 `json:"userId" validate:"required,gt=0"`
	NotificationsEnabled *bool `json:"notificationsEnabled" validate:"required"`
}

type SettingsResponse struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
}

// ----- Chat -----

type MessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type OnlineResponse struct {
	Online int `json:"online"`
}

type PostMessageRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	Username    string `json:"username" validate:"required"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty" validate:"omitempty,oneof=text image audio"`
	MediaURL    string `json:"mediaUrl,omitempty" validate:"omitempty,url"`
}

// DeleteMessageRequest is sent with PUT; the backend re-checks ownership.
type DeleteMessageRequest struct {
	MessageID int64 `json:"messageId" validate:"required,gt=0"`
	UserID    int64 `json:"userId" validate:"required,gt=0"`
}

type ReportRequest struct {
	Action    string `json:"action" validate:"required,eq=report"`
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=200"`
}

// ----- Object storage -----

type UploadData struct {
	URL string `json:"url"`
}

type UploadResponse struct {
	Status string      `json:"status"`
	Data   *UploadData `json:"data,omitempty"`
}

// ----- Common -----

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
