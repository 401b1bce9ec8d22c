package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"

	"github.com/NicolasHaas/roulette/pkg/client"
)

const prefNotificationPermission = "notifications.permission"

// desktopNotifications shows system notifications through Fyne. Desktop
// platforms have no permission prompt of their own, so the user's answer
// is asked once in-app and kept in the app preferences.
type desktopNotifications struct {
	app    fyne.App
	window fyne.Window
}

func newDesktopNotifications(app fyne.App, window fyne.Window) *desktopNotifications {
	return &desktopNotifications{app: app, window: window}
}

func (d *desktopNotifications) Permission() client.Permission {
	switch d.app.Preferences().String(prefNotificationPermission) {
	case client.PermissionGranted.String():
		return client.PermissionGranted
	case client.PermissionDenied.String():
		return client.PermissionDenied
	default:
		return client.PermissionDefault
	}
}

// RequestPermission asks on the UI thread and blocks until the user answers.
// It must not be called from the Fyne goroutine.
func (d *desktopNotifications) RequestPermission(ctx context.Context) (client.Permission, error) {
	answer := make(chan bool, 1)
	fyne.Do(func() {
		dialog.ShowConfirm("Notifications",
			"Show a desktop notification when someone else posts a message?",
			func(ok bool) { answer <- ok },
			d.window)
	})

	select {
	case <-ctx.Done():
		return client.PermissionDefault, ctx.Err()
	case ok := <-answer:
		p := client.PermissionDenied
		if ok {
			p = client.PermissionGranted
		}
		d.app.Preferences().SetString(prefNotificationPermission, p.String())
		return p, nil
	}
}

func (d *desktopNotifications) Show(title, body string) error {
	d.app.SendNotification(fyne.NewNotification(title, body))
	return nil
}

// resetPermission forgets the stored answer so the next enable asks again.
func (d *desktopNotifications) resetPermission() {
	d.app.Preferences().RemoveValue(prefNotificationPermission)
}
