package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/NicolasHaas/roulette/pkg/crypto"
	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
	"github.com/NicolasHaas/roulette/pkg/store"
)

// handleAuth serves login and registration.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req protocol.AuthRequest
	if err := protocol.Decode(r.Body, &req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		protocol.WriteError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	switch req.Action {
	case protocol.ActionRegister:
		s.register(w, username, req.Password)
	case protocol.ActionLogin:
		s.login(w, username, req.Password)
	default:
		protocol.WriteError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (s *Server) register(w http.ResponseWriter, username, password string) {
	hash, err := crypto.EncodePassword(password)
	if err != nil {
		slog.Error("hash password", "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	user, err := s.store.CreateUser(username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		protocol.WriteError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	if msg, ok := usernameError(err); ok {
		protocol.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if err != nil {
		slog.Error("create user", "username", username, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.metrics.Registrations.Add(1)
	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	protocol.WriteJSON(w, http.StatusOK, protocol.AuthResponse{
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) login(w http.ResponseWriter, username, password string) {
	user, hash, err := s.store.GetUserByUsername(username)
	if err != nil {
		slog.Error("lookup user", "username", username, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil {
		s.metrics.FailedAuths.Add(1)
		protocol.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	ok, err := crypto.VerifyPassword(password, hash)
	if err != nil {
		slog.Error("verify password", "user_id", user.ID, "err", err)
	}
	if !ok {
		s.metrics.FailedAuths.Add(1)
		protocol.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := s.store.TouchLastSeen(user.ID, s.now()); err != nil {
		slog.Warn("touch last seen", "user_id", user.ID, "err", err)
	}
	s.metrics.SuccessfulAuths.Add(1)
	enabled := user.NotificationsEnabled
	protocol.WriteJSON(w, http.StatusOK, protocol.AuthResponse{
		UserID:               user.ID,
		Username:             user.Username,
		NotificationsEnabled: &enabled,
	})
}

// handleGetSettings returns the notification flag for ?userId=.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		protocol.WriteError(w, http.StatusBadRequest, "User ID required")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		protocol.WriteError(w, http.StatusBadRequest, "User ID required")
		return
	}

	user, err := s.store.GetUser(id)
	if err != nil {
		slog.Error("get user", "user_id", id, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil {
		protocol.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	protocol.WriteJSON(w, http.StatusOK, protocol.SettingsResponse{
		NotificationsEnabled: user.NotificationsEnabled,
	})
}

// handleUpdateSettings stores the notification flag.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req protocol.SettingsUpdate
	if err := protocol.DecodeValidate(r.Body, &req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid data")
		return
	}
	err := s.store.SetNotifications(req.UserID, *req.NotificationsEnabled)
	if errors.Is(err, store.ErrNotFound) {
		protocol.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("set notifications", "user_id", req.UserID, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	protocol.WriteJSON(w, http.StatusOK, protocol.SuccessResponse{Success: true})
}

// usernameError maps a username validation failure to a client message.
func usernameError(err error) (string, bool) {
	for _, target := range []error{model.ErrUsernameEmpty, model.ErrUsernameTooLong, model.ErrUsernameInvalidChars} {
		if errors.Is(err, target) {
			msg := target.Error()
			return strings.ToUpper(msg[:1]) + msg[1:], true
		}
	}
	return "", false
}
