package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
	"github.com/NicolasHaas/roulette/pkg/store"
)

// handleGetChat returns the feed, or the online count for ?action=online.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") == protocol.ActionOnline {
		n, err := s.store.CountOnline(s.now().Add(-s.cfg.OnlineWindow))
		if err != nil {
			slog.Error("count online", "err", err)
			protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		protocol.WriteJSON(w, http.StatusOK, protocol.OnlineResponse{Online: n})
		return
	}

	msgs, err := s.store.ListMessages(protocol.FeedLimit)
	if err != nil {
		slog.Error("list messages", "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	protocol.WriteJSON(w, http.StatusOK, protocol.MessagesResponse{Messages: msgs})
}

// handlePostChat posts a message, or files a report when the body carries
// action "report".
func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, protocol.MaxBodyBytes))
	if err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var peek struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if peek.Action == protocol.ActionReport {
		s.report(w, body)
		return
	}
	s.postMessage(w, body)
}

func (s *Server) postMessage(w http.ResponseWriter, body []byte) {
	var req protocol.PostMessageRequest
	if err := protocol.DecodeValidate(bytes.NewReader(body), &req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	user, err := s.store.GetUser(req.UserID)
	if err != nil {
		slog.Error("get user", "user_id", req.UserID, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil {
		protocol.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	author := user.ID
	msg := &model.Message{
		Username:     user.Username,
		Message:      s.cleanText(req.Message),
		MessageType:  model.ParseMessageType(req.MessageType),
		MediaURL:     req.MediaURL,
		AuthorUserID: &author,
	}
	if err := s.store.CreateMessage(msg); err != nil {
		switch {
		case errors.Is(err, model.ErrMessageBodyEmpty):
			protocol.WriteError(w, http.StatusBadRequest, "Message cannot be empty")
		case errors.Is(err, model.ErrMessageMediaMissing), errors.Is(err, model.ErrMessageBodyTooLong):
			protocol.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("create message", "user_id", user.ID, "err", err)
			protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	if err := s.store.TouchLastSeen(user.ID, s.now()); err != nil {
		slog.Warn("touch last seen", "user_id", user.ID, "err", err)
	}
	s.metrics.MessagesPosted.Add(1)
	slog.Debug("message posted", "id", msg.ID, "user_id", user.ID, "type", msg.MessageType)
	protocol.WriteJSON(w, http.StatusOK, msg)
}

func (s *Server) report(w http.ResponseWriter, body []byte) {
	var req protocol.ReportRequest
	if err := protocol.DecodeValidate(bytes.NewReader(body), &req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid data")
		return
	}
	if err := s.store.CreateReport(req.MessageID, req.UserID, req.Reason); err != nil {
		slog.Error("create report", "message_id", req.MessageID, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	s.metrics.Reports.Add(1)
	slog.Info("message reported", "message_id", req.MessageID, "reporter", req.UserID, "reason", req.Reason)
	protocol.WriteJSON(w, http.StatusOK, protocol.SuccessResponse{Success: true})
}

// handleDeleteMessage deletes one of the caller's own messages.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req protocol.DeleteMessageRequest
	if err := protocol.DecodeValidate(r.Body, &req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid data")
		return
	}
	err := s.store.DeleteMessage(req.MessageID, req.UserID)
	switch {
	case errors.Is(err, store.ErrForbidden):
		protocol.WriteError(w, http.StatusForbidden, "You can only delete your own messages")
		return
	case errors.Is(err, store.ErrNotFound):
		protocol.WriteError(w, http.StatusNotFound, "Message not found")
		return
	case err != nil:
		slog.Error("delete message", "message_id", req.MessageID, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	s.metrics.MessagesDeleted.Add(1)
	protocol.WriteJSON(w, http.StatusOK, protocol.SuccessResponse{Success: true})
}

// cleanText strips markup from user text. The client renders plain text, so
// the entities the policy produces are decoded again.
func (s *Server) cleanText(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitize.Sanitize(text)))
}
