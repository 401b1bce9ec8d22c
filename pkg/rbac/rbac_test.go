package rbac

import (
	"testing"

	"github.com/NicolasHaas/roulette/pkg/model"
)

func ptr(v int64) *int64 { return &v }

func TestAllowed(t *testing.T) {
	alice := &model.Session{UserID: 1, Username: "alice"}

	tests := []struct {
		name   string
		msg    *model.Message
		action Action
		want   bool
	}{
		{"delete own by id", &model.Message{Username: "alice", AuthorUserID: ptr(1)}, ActionDelete, true},
		{"delete own by username", &model.Message{Username: "alice"}, ActionDelete, true},
		{"delete other", &model.Message{Username: "bob", AuthorUserID: ptr(2)}, ActionDelete, false},
		{"report other", &model.Message{Username: "bob"}, ActionReport, true},
		{"report own", &model.Message{Username: "alice", AuthorUserID: ptr(1)}, ActionReport, false},
		{"id wins over username", &model.Message{Username: "alice", AuthorUserID: ptr(9)}, ActionDelete, false},
		{"unknown action", &model.Message{Username: "alice"}, Action(42), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(alice, tt.msg, tt.action); got != tt.want {
				t.Errorf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNilInputs(t *testing.T) {
	if CanDelete(nil, &model.Message{}) {
		t.Error("nil session must not delete")
	}
	if CanReport(&model.Session{UserID: 1}, nil) {
		t.Error("nil message must not be reportable")
	}
}

func TestRequirePermission(t *testing.T) {
	s := &model.Session{UserID: 1, Username: "alice"}
	msg := &model.Message{Username: "bob"}
	if got := RequirePermission(s, msg, ActionReport); got != "" {
		t.Errorf("expected allowed, got %q", got)
	}
	if got := RequirePermission(s, msg, ActionDelete); got == "" {
		t.Error("expected denial message")
	}
}
