// Package rbac decides which moderation actions a session may take on a
// chat message. The client uses it to expose actions and the backend to
// re-check them.
package rbac

import "github.com/NicolasHaas/roulette/pkg/model"

// Action is a moderation operation on a single message.
type Action int

const (
	ActionDelete Action = iota
	ActionReport
)

func (a Action) String() string {
	switch a {
	case ActionDelete:
		return "delete"
	case ActionReport:
		return "report"
	default:
		return "unknown"
	}
}

// Allowed reports whether s may perform a on msg. Authors may delete their
// own messages; everyone else may report them.
func Allowed(s *model.Session, msg *model.Message, a Action) bool {
	if s == nil || msg == nil {
		return false
	}
	own := msg.IsOwnedBy(s)
	switch a {
	case ActionDelete:
		return own
	case ActionReport:
		return !own
	default:
		return false
	}
}

// CanDelete reports whether s authored msg.
func CanDelete(s *model.Session, msg *model.Message) bool {
	return Allowed(s, msg, ActionDelete)
}

// CanReport reports whether msg belongs to someone other than s.
func CanReport(s *model.Session, msg *model.Message) bool {
	return Allowed(s, msg, ActionReport)
}

// RequirePermission returns an error message if the action is not allowed, or
// empty string if allowed.
func RequirePermission(s *model.Session, msg *model.Message, a Action) string {
	if Allowed(s, msg, a) {
		return ""
	}
	return "permission denied: " + a.String() + " not allowed on this message"
}
