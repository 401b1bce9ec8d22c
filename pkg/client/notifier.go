package client

import (
	"context"
	"log/slog"

	"github.com/NicolasHaas/roulette/pkg/model"
)

// NotificationTitle is the title of every new-message notification.
const NotificationTitle = "New message"

// previewRunes is how much of the message text a notification shows.
const previewRunes = 50

// Permission is the platform's notification permission state.
type Permission int

const (
	PermissionDefault Permission = iota // never asked
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Platform shows system notifications.
type Platform interface {
	Permission() Permission
	// RequestPermission asks the user and returns the decision.
	RequestPermission(ctx context.Context) (Permission, error)
	Show(title, body string) error
}

// SoundPlayer plays the new-message sound. Play may block while playing.
type SoundPlayer interface {
	Play() error
}

// Notifier alerts the user about messages from others.
type Notifier struct {
	platform Platform
	sound    SoundPlayer
}

// NewNotifier creates a notifier. Either collaborator may be nil.
func NewNotifier(platform Platform, sound SoundPlayer) *Notifier {
	return &Notifier{platform: platform, sound: sound}
}

// Notify alerts about msg unless the session authored it or has
// notifications off. It reports whether an alert was raised.
func (n *Notifier) Notify(s *model.Session, msg *model.Message) bool {
	if s == nil || msg == nil {
		return false
	}
	if msg.IsOwnedBy(s) || !s.NotificationsEnabled {
		return false
	}

	if n.sound != nil {
		go func() {
			if err := n.sound.Play(); err != nil {
				slog.Debug("notification sound", "err", err)
			}
		}()
	}

	if n.platform != nil && n.platform.Permission() == PermissionGranted {
		if err := n.platform.Show(NotificationTitle, NotificationBody(msg)); err != nil {
			slog.Debug("show notification", "err", err)
		}
	}
	return true
}

// EnsurePermission asks for notification permission if the user has never
// decided. An earlier grant or denial is returned without prompting.
func (n *Notifier) EnsurePermission(ctx context.Context) Permission {
	if n.platform == nil {
		return PermissionDenied
	}
	current := n.platform.Permission()
	if current != PermissionDefault {
		return current
	}
	p, err := n.platform.RequestPermission(ctx)
	if err != nil {
		slog.Warn("request notification permission", "err", err)
		return current
	}
	slog.Info("notification permission", "state", p)
	return p
}

// NotificationBody renders "author: preview".
func NotificationBody(msg *model.Message) string {
	return msg.Username + ": " + msg.Preview(previewRunes)
}
