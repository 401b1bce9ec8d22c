package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/rbac"
)

// ReportReason is sent with every report.
const ReportReason = "inappropriate content"

var (
	ErrNotPermitted    = errors.New("action not permitted on this message")
	ErrMessageNotFound = errors.New("message not found")
)

// Result is the outcome of a moderation action.
type Result struct {
	Action    rbac.Action
	MessageID int64
	Err       error
}

// OK reports whether the backend accepted the action.
func (r Result) OK() bool {
	return r.Err == nil
}

// Remove deletes one of the user's own messages. The feed is refreshed and
// the deletion acknowledged whether or not the backend succeeded.
func (e *Engine) Remove(ctx context.Context, messageID int64) Result {
	res := Result{Action: rbac.ActionDelete, MessageID: messageID}
	s, gen, msg := e.lookup(messageID)
	if res.Err = checkAction(s, msg, rbac.ActionDelete); res.Err != nil {
		_ = e.fail(res.Err)
		return res
	}

	res.Err = e.deps.Chat.DeleteMessage(ctx, messageID, s.UserID)
	if res.Err != nil {
		slog.Warn("delete message", "id", messageID, "err", res.Err)
	}
	e.refreshIfCurrent(ctx, gen)
	e.toast("Message deleted")
	return res
}

// Report flags another user's message. The feed is not refreshed.
func (e *Engine) Report(ctx context.Context, messageID int64) Result {
	res := Result{Action: rbac.ActionReport, MessageID: messageID}
	s, _, msg := e.lookup(messageID)
	if res.Err = checkAction(s, msg, rbac.ActionReport); res.Err != nil {
		_ = e.fail(res.Err)
		return res
	}

	res.Err = e.deps.Chat.ReportMessage(ctx, messageID, s.UserID, ReportReason)
	if res.Err != nil {
		_ = e.fail(res.Err)
		return res
	}
	e.toast("Report sent")
	return res
}

func checkAction(s *model.Session, msg *model.Message, a rbac.Action) error {
	switch {
	case s == nil:
		return ErrNotSignedIn
	case msg == nil:
		return ErrMessageNotFound
	case !rbac.Allowed(s, msg, a):
		return ErrNotPermitted
	}
	return nil
}

// lookup finds a message in the current feed.
func (e *Engine) lookup(id int64) (*model.Session, uint64, *model.Message) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.feed {
		if e.feed[i].ID == id {
			m := e.feed[i]
			return e.session.Clone(), e.gen, &m
		}
	}
	return e.session.Clone(), e.gen, nil
}
