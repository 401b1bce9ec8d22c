// Package ui provides the Fyne-based GUI for the Roulette chat client.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/roulette/pkg/audio"
	"github.com/NicolasHaas/roulette/pkg/client"
	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/version"
)

// requestTimeout bounds user-triggered backend calls.
const requestTimeout = 30 * time.Second

// App is the main GUI application.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	engine  *client.Engine
	cfg     *client.Config
	notify  *desktopNotifications

	// Login screen
	loginView     fyne.CanvasObject
	usernameEntry *widget.Entry
	passwordEntry *widget.Entry
	loginBtn      *widget.Button
	registerBtn   *widget.Button

	// Chat screen
	chatView    fyne.CanvasObject
	userLabel   *widget.Label
	onlineLabel *widget.Label
	notifyCheck *widget.Check
	feedBox     *fyne.Container
	feedScroll  *container.Scroll
	chatEntry   *widget.Entry
	attachLabel *widget.Label
	clearBtn    *widget.Button
	attachBtn   *widget.Button
	recordBtn   *widget.Button
	sendBtn     *widget.Button
	levelBar    *widget.ProgressBar

	statusLabel *widget.Label
	root        *fyne.Container

	syncingCheck bool // set while the notification checkbox mirrors engine state
}

// NewApp creates the GUI and wires the client engine to the configured
// backend endpoints.
func NewApp(cfg *client.Config) *App {
	// Start PortAudio init in background so the first recording or chime is fast
	audio.PreInitAudio()

	a := &App{
		fyneApp: app.NewWithID("io.roulette.client"),
		cfg:     cfg,
	}
	a.window = a.fyneApp.NewWindow("Roulette")
	a.window.Resize(fyne.NewSize(720, 640))
	a.window.SetMaster()
	a.notify = newDesktopNotifications(a.fyneApp, a.window)

	recorder := audio.NewRecorder(audio.RecorderConfig{
		DeviceName: cfg.AudioInput,
		OnLevel: func(level float64) {
			fyne.Do(func() { a.levelBar.SetValue(level) })
		},
	})
	api := client.NewAPIClient(cfg.AuthURL, cfg.ChatURL)
	a.engine = client.NewEngine(client.Deps{
		Auth:         api,
		Chat:         api,
		Uploader:     client.NewHTTPUploader(cfg.UploadURL),
		Sessions:     client.NewFileSessionStore(cfg.SessionFile),
		Notifier:     client.NewNotifier(a.notify, audio.NewChime(cfg.AudioOutput)),
		Recorder:     media.NewRecorder(recorder),
		PollInterval: cfg.PollInterval,
	})
	return a
}

// Run starts the GUI application (blocks).
func (a *App) Run() {
	a.buildUI()
	a.bindEvents()

	restored, err := a.engine.Start()
	if err != nil {
		slog.Error("restore session", "err", err)
	}
	if restored {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := a.engine.SyncSettings(ctx); err != nil {
				slog.Warn("sync settings", "err", err)
			}
		}()
	}

	a.window.SetCloseIntercept(func() {
		if a.engine.Recording() {
			_ = a.engine.StopRecording()
		}
		a.fyneApp.Quit()
	})
	a.window.ShowAndRun()
}

func (a *App) buildUI() {
	a.statusLabel = widget.NewLabel("")
	a.statusLabel.TextStyle = fyne.TextStyle{Italic: true}

	versionLabel := widget.NewLabel(version.String())
	versionLabel.TextStyle = fyne.TextStyle{Italic: true}
	versionLabel.Importance = widget.LowImportance

	a.loginView = a.buildLoginView()
	a.chatView = a.buildChatView()
	a.chatView.Hide()

	statusBar := container.NewHBox(a.statusLabel, layout.NewSpacer(), versionLabel)
	a.root = container.NewBorder(nil, statusBar, nil, nil, container.NewStack(a.loginView, a.chatView))
	a.window.SetContent(a.root)
}

func (a *App) buildLoginView() fyne.CanvasObject {
	a.usernameEntry = widget.NewEntry()
	a.usernameEntry.SetPlaceHolder("Username")
	a.passwordEntry = widget.NewPasswordEntry()
	a.passwordEntry.SetPlaceHolder("Password")
	a.passwordEntry.OnSubmitted = func(string) { a.authenticate(false) }

	a.loginBtn = widget.NewButtonWithIcon("Log in", theme.LoginIcon(), func() { a.authenticate(false) })
	a.loginBtn.Importance = widget.HighImportance
	a.registerBtn = widget.NewButton("Create account", func() { a.authenticate(true) })

	form := container.NewVBox(
		widget.NewLabelWithStyle("Roulette", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("One room, everyone in it.", fyne.TextAlignCenter, fyne.TextStyle{Italic: true}),
		widget.NewSeparator(),
		a.usernameEntry,
		a.passwordEntry,
		container.NewGridWithColumns(2, a.registerBtn, a.loginBtn),
	)
	sized := container.New(layout.NewGridWrapLayout(fyne.NewSize(320, 260)), form)
	return container.NewCenter(sized)
}

func (a *App) buildChatView() fyne.CanvasObject {
	// --- Toolbar ---
	a.userLabel = widget.NewLabel("")
	a.userLabel.TextStyle = fyne.TextStyle{Bold: true}
	a.onlineLabel = widget.NewLabel("0 online")

	a.notifyCheck = widget.NewCheck("Notifications", func(on bool) {
		if a.syncingCheck {
			return
		}
		a.background(func(ctx context.Context) {
			_ = a.engine.SetNotificationsEnabled(ctx, on)
		})
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), a.showSettingsDialog)
	logoutBtn := widget.NewButtonWithIcon("Log out", theme.LogoutIcon(), func() {
		dialog.ShowConfirm("Log out", "Sign out of this device?", func(ok bool) {
			if ok {
				go a.engine.Logout()
			}
		}, a.window)
	})

	toolbar := container.NewHBox(
		a.userLabel,
		a.onlineLabel,
		layout.NewSpacer(),
		a.notifyCheck,
		settingsBtn,
		logoutBtn,
	)

	// --- Feed ---
	a.feedBox = container.NewVBox()
	a.feedScroll = container.NewVScroll(a.feedBox)

	// --- Composer ---
	a.chatEntry = widget.NewEntry()
	a.chatEntry.SetPlaceHolder("Type a message... (Enter to send)")
	a.chatEntry.OnChanged = func(text string) {
		a.engine.SetDraftText(text)
	}
	a.chatEntry.OnSubmitted = func(string) { a.submit() }

	a.attachBtn = widget.NewButtonWithIcon("", theme.MailAttachmentIcon(), a.showAttachDialog)
	a.recordBtn = widget.NewButtonWithIcon("", theme.MediaRecordIcon(), a.toggleRecording)
	a.sendBtn = widget.NewButtonWithIcon("", theme.MailSendIcon(), a.submit)
	a.sendBtn.Importance = widget.HighImportance

	a.attachLabel = widget.NewLabel("")
	a.attachLabel.Truncation = fyne.TextTruncateEllipsis
	a.clearBtn = widget.NewButtonWithIcon("", theme.CancelIcon(), func() { a.engine.ClearAttachment() })
	a.clearBtn.Importance = widget.LowImportance
	a.clearBtn.Hide()

	a.levelBar = widget.NewProgressBar()
	a.levelBar.Min = 0
	a.levelBar.Max = 1
	a.levelBar.TextFormatter = func() string { return "recording" }
	a.levelBar.Hide()

	pending := container.NewBorder(nil, nil, nil, a.clearBtn, a.attachLabel)
	entryRow := container.NewBorder(nil, nil, container.NewHBox(a.attachBtn, a.recordBtn), a.sendBtn, a.chatEntry)
	composer := container.NewVBox(a.levelBar, pending, entryRow)

	return container.NewBorder(
		container.NewVBox(toolbar, widget.NewSeparator()),
		composer,
		nil, nil,
		a.feedScroll,
	)
}

func (a *App) bindEvents() {
	a.engine.OnStateChange = func(state client.State) {
		fyne.Do(func() { a.applyState(state) })
	}

	a.engine.OnFeed = func(msgs []model.Message) {
		fyne.Do(func() { a.renderFeed(msgs) })
	}

	a.engine.OnOnlineCount = func(n int) {
		fyne.Do(func() { a.onlineLabel.SetText(fmt.Sprintf("%d online", n)) })
	}

	a.engine.OnDraftChange = func(d client.Draft) {
		fyne.Do(func() { a.applyDraft(d) })
	}

	a.engine.OnNotify = func(msg model.Message) {
		slog.Debug("notified", "id", msg.ID, "from", msg.Username)
	}

	a.engine.OnToast = func(text string) {
		fyne.Do(func() { a.showStatus(text) })
	}

	a.engine.OnError = func(err error) {
		fyne.Do(func() {
			dialog.ShowError(err, a.window)
		})
	}
}

func (a *App) applyState(state client.State) {
	switch state {
	case client.StateSignedOut:
		a.loginView.Show()
		a.chatView.Hide()
		a.loginBtn.Enable()
		a.registerBtn.Enable()
		a.feedBox.RemoveAll()
		a.onlineLabel.SetText("0 online")
		a.showStatus("Signed out")
	case client.StateSigningIn:
		a.loginBtn.Disable()
		a.registerBtn.Disable()
		a.showStatus("Signing in...")
	case client.StateSignedIn:
		s := a.engine.Session()
		if s == nil {
			return
		}
		a.passwordEntry.SetText("")
		a.loginView.Hide()
		a.chatView.Show()
		a.userLabel.SetText(s.Username)
		a.syncingCheck = true
		a.notifyCheck.SetChecked(s.NotificationsEnabled)
		a.syncingCheck = false
		a.showStatus("Signed in as " + s.Username)
		a.window.Canvas().Focus(a.chatEntry)
	}
}

func (a *App) applyDraft(d client.Draft) {
	if a.chatEntry.Text != d.Text {
		a.chatEntry.SetText(d.Text)
	}

	switch {
	case d.Recording:
		a.attachLabel.SetText("Recording voice note...")
		a.clearBtn.Hide()
	case d.Attachment != nil:
		a.attachLabel.SetText(fmt.Sprintf("%s (%s)", d.Attachment.Filename, humanSize(d.Attachment.SizeBytes)))
		a.clearBtn.Show()
	default:
		a.attachLabel.SetText("")
		a.clearBtn.Hide()
	}

	if d.Recording {
		a.recordBtn.SetIcon(theme.MediaStopIcon())
		a.levelBar.Show()
		a.attachBtn.Disable()
	} else {
		a.recordBtn.SetIcon(theme.MediaRecordIcon())
		a.levelBar.SetValue(0)
		a.levelBar.Hide()
		a.attachBtn.Enable()
	}
}

// renderFeed replaces the feed view with msgs.
func (a *App) renderFeed(msgs []model.Message) {
	session := a.engine.Session()
	atBottom := a.feedScroll.Offset.Y+a.feedScroll.Size().Height >= a.feedBox.MinSize().Height-4

	a.feedBox.RemoveAll()
	for i := range msgs {
		a.feedBox.Add(a.messageRow(session, msgs[i]))
	}
	a.feedBox.Refresh()
	if atBottom {
		a.feedScroll.ScrollToBottom()
	}
}

func (a *App) messageRow(session *model.Session, msg model.Message) fyne.CanvasObject {
	header := widget.NewLabelWithStyle(
		fmt.Sprintf("%s  %s", msg.Username, formatTimestamp(msg.Timestamp)),
		fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	body := container.NewVBox(header)
	if text := strings.TrimSpace(msg.Message); text != "" {
		lbl := widget.NewLabel(text)
		lbl.Wrapping = fyne.TextWrapWord
		body.Add(lbl)
	}
	if msg.Type().IsMedia() && msg.MediaURL != "" {
		if link, err := url.Parse(msg.MediaURL); err == nil {
			label := "Open image"
			if msg.Type() == model.MessageAudio {
				label = "Play voice note"
			}
			body.Add(widget.NewHyperlink(label, link))
		}
	}

	id := msg.ID
	var action *widget.Button
	if msg.IsOwnedBy(session) {
		action = widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			dialog.ShowConfirm("Delete message", "Delete this message for everyone?", func(ok bool) {
				if ok {
					a.background(func(ctx context.Context) { a.engine.Remove(ctx, id) })
				}
			}, a.window)
		})
	} else {
		action = widget.NewButtonWithIcon("", theme.WarningIcon(), func() {
			dialog.ShowConfirm("Report message", "Report this message as inappropriate?", func(ok bool) {
				if ok {
					a.background(func(ctx context.Context) { a.engine.Report(ctx, id) })
				}
			}, a.window)
		})
	}
	action.Importance = widget.LowImportance

	return container.NewBorder(nil, nil, nil, action, body)
}

func (a *App) authenticate(register bool) {
	username := strings.TrimSpace(a.usernameEntry.Text)
	password := a.passwordEntry.Text
	a.background(func(ctx context.Context) {
		if register {
			_ = a.engine.Register(ctx, username, password)
		} else {
			_ = a.engine.Login(ctx, username, password)
		}
	})
}

func (a *App) submit() {
	if a.engine.Draft().Empty() {
		return
	}
	a.sendBtn.Disable()
	a.background(func(ctx context.Context) {
		defer fyne.Do(func() { a.sendBtn.Enable() })
		_ = a.engine.Submit(ctx)
	})
}

func (a *App) toggleRecording() {
	if a.engine.Recording() {
		go func() { _ = a.engine.StopRecording() }()
		return
	}
	go func() { _ = a.engine.StartRecording(context.Background()) }()
}

func (a *App) showAttachDialog() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		go func() { _ = a.engine.AttachFile(path) }()
	}, a.window)
	d.Show()
}

func (a *App) showSettingsDialog() {
	inputDevices, err := audio.ListInputDevices()
	if err != nil {
		slog.Warn("list input devices", "err", err)
	}
	inputNames := make([]string, 0, len(inputDevices)+1)
	inputNames = append(inputNames, "(Default)")
	for _, d := range inputDevices {
		inputNames = append(inputNames, d.Name)
	}
	inputSelect := widget.NewSelect(inputNames, nil)
	if a.cfg.AudioInput != "" {
		inputSelect.SetSelected(a.cfg.AudioInput)
	} else {
		inputSelect.SetSelected("(Default)")
	}

	resetBtn := widget.NewButton("Ask again for notification permission", func() {
		a.notify.resetPermission()
		a.showStatus("Notification permission will be asked on next enable")
	})
	resetBtn.Importance = widget.LowImportance

	content := container.NewVBox(
		widget.NewLabelWithStyle("Audio", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		widget.NewLabel("Microphone:"),
		inputSelect,
		widget.NewLabel("Device changes apply after restart."),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Server", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabel(a.cfg.ChatURL),
		resetBtn,
	)

	d := dialog.NewCustomConfirm("Settings", "Apply", "Cancel", content,
		func(ok bool) {
			if !ok {
				return
			}
			if inputSelect.Selected != "(Default)" {
				a.cfg.AudioInput = inputSelect.Selected
			} else {
				a.cfg.AudioInput = ""
			}
			if err := a.cfg.Save(); err != nil {
				slog.Error("save config", "err", err)
				dialog.ShowError(err, a.window)
			}
		}, a.window)
	d.Resize(fyne.NewSize(420, 320))
	d.Show()
}

// background runs fn off the UI goroutine with a request timeout.
func (a *App) background(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (a *App) showStatus(text string) {
	a.statusLabel.SetText(text)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	t = t.Local()
	if time.Since(t) < 24*time.Hour {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
