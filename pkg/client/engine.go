package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/model"
)

// State represents the client's session state.
type State int

const (
	StateSignedOut State = iota
	StateSigningIn
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateSigningIn:
		return "signing-in"
	case StateSignedIn:
		return "signed-in"
	default:
		return "signed-out"
	}
}

var (
	ErrNotSignedIn     = errors.New("not signed in")
	ErrAlreadySignedIn = errors.New("already signed in")
)

// Deps are the engine's collaborators. Notifier and Recorder may be nil.
type Deps struct {
	Auth         AuthAPI
	Chat         ChatAPI
	Uploader     Uploader
	Sessions     SessionStore
	Notifier     *Notifier
	Recorder     *media.Recorder
	PollInterval time.Duration
}

// Engine is the client core: it owns the session, the feed snapshot, the
// composer draft and the poller, and reports changes through callbacks.
// Callbacks run outside the engine lock, on whichever goroutine produced
// the change.
type Engine struct {
	mu sync.RWMutex

	state   State
	session *model.Session
	gen     uint64 // bumped on every sign-in and sign-out

	feed      []model.Message
	online    int
	feedSeq   latestSeq
	onlineSeq latestSeq
	detector  Detector
	poller    *Poller

	draft   Draft
	sending bool

	deps Deps

	// Callbacks for UI updates
	OnStateChange func(state State)
	OnFeed        func(msgs []model.Message)
	OnOnlineCount func(n int)
	OnNotify      func(msg model.Message)
	OnDraftChange func(d Draft)
	OnToast       func(text string)
	OnError       func(err error)
}

// NewEngine creates a signed-out engine.
func NewEngine(deps Deps) *Engine {
	if deps.Sessions == nil {
		deps.Sessions = &MemorySessionStore{}
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	return &Engine{deps: deps}
}

// Start restores a persisted session, if any, without contacting the
// backend. It reports whether a session was restored.
func (e *Engine) Start() (bool, error) {
	s, err := e.deps.Sessions.Load()
	if err != nil {
		return false, err
	}
	if s == nil {
		return false, nil
	}
	slog.Info("session restored", "user", s.Username, "id", s.UserID)
	e.activate(s)
	return true, nil
}

// Login authenticates and signs in.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	return e.authenticate(ctx, username, password, e.deps.Auth.Login)
}

// Register creates an account and signs in.
func (e *Engine) Register(ctx context.Context, username, password string) error {
	return e.authenticate(ctx, username, password, e.deps.Auth.Register)
}

type authFunc func(ctx context.Context, username, password string) (*model.Session, error)

func (e *Engine) authenticate(ctx context.Context, username, password string, fn authFunc) error {
	if err := model.ValidateCredentials(username, password); err != nil {
		return e.fail(err)
	}

	e.mu.Lock()
	if e.state != StateSignedOut {
		e.mu.Unlock()
		return e.fail(ErrAlreadySignedIn)
	}
	e.state = StateSigningIn
	e.mu.Unlock()
	e.notifyStateChange(StateSigningIn)

	s, err := fn(ctx, username, password)
	if err != nil {
		e.setState(StateSignedOut)
		return e.fail(err)
	}
	if err := e.deps.Sessions.Save(s); err != nil {
		slog.Error("persist session", "err", err)
	}

	slog.Info("signed in", "user", s.Username, "id", s.UserID)
	e.activate(s)
	if e.deps.Notifier != nil {
		e.deps.Notifier.EnsurePermission(ctx)
	}
	return nil
}

// Logout forgets the session and stops polling. Results of requests still
// in flight are ignored.
func (e *Engine) Logout() {
	if err := e.deps.Sessions.Clear(); err != nil {
		slog.Error("clear session", "err", err)
	}
	if rec := e.deps.Recorder; rec != nil && rec.Recording() {
		if _, err := rec.Stop(); err != nil {
			slog.Debug("discard recording", "err", err)
		}
	}
	e.deactivate()
	slog.Info("signed out")
}

// SetNotificationsEnabled toggles notifications locally and on the server.
// The local flag changes even if the server update fails.
func (e *Engine) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNotSignedIn
	}
	e.session.NotificationsEnabled = enabled
	s := e.session.Clone()
	state := e.state
	e.mu.Unlock()

	if err := e.deps.Sessions.Save(s); err != nil {
		slog.Error("persist session", "err", err)
	}
	e.notifyStateChange(state)

	if enabled && e.deps.Notifier != nil {
		e.deps.Notifier.EnsurePermission(ctx)
	}
	if err := e.deps.Auth.UpdateSettings(ctx, s.UserID, enabled); err != nil {
		return e.fail(fmt.Errorf("save notification setting: %w", err))
	}
	return nil
}

// SyncSettings pulls the server-side notification flag into the session.
func (e *Engine) SyncSettings(ctx context.Context) error {
	e.mu.RLock()
	s := e.session.Clone()
	gen := e.gen
	e.mu.RUnlock()
	if s == nil {
		return ErrNotSignedIn
	}

	enabled, err := e.deps.Auth.FetchSettings(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("client: sync settings: %w", err)
	}

	e.mu.Lock()
	if gen != e.gen || e.session.NotificationsEnabled == enabled {
		e.mu.Unlock()
		return nil
	}
	e.session.NotificationsEnabled = enabled
	s = e.session.Clone()
	state := e.state
	e.mu.Unlock()

	if err := e.deps.Sessions.Save(s); err != nil {
		slog.Error("persist session", "err", err)
	}
	e.notifyStateChange(state)
	return nil
}

// Refresh fetches the feed immediately, outside the poll schedule.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.RLock()
	p := e.poller
	e.mu.RUnlock()
	if p == nil {
		return ErrNotSignedIn
	}
	return p.RefreshMessages(ctx)
}

// GetState returns the session state.
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Session returns a copy of the current session, or nil.
func (e *Engine) Session() *model.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Clone()
}

// Feed returns a copy of the latest feed snapshot.
func (e *Engine) Feed() []model.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.Message(nil), e.feed...)
}

// OnlineCount returns the latest online user count.
func (e *Engine) OnlineCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.online
}

func (e *Engine) activate(s *model.Session) {
	e.mu.Lock()
	old := e.poller
	e.gen++
	gen := e.gen
	e.session = s.Clone()
	e.state = StateSignedIn
	e.feed = nil
	e.online = 0
	e.feedSeq = latestSeq{}
	e.onlineSeq = latestSeq{}
	e.detector.Reset()
	p := NewPoller(e.deps.Chat, e.deps.PollInterval, PollHandlers{
		Messages: func(seq uint64, msgs []model.Message) { e.applyFeed(gen, seq, msgs) },
		Online:   func(seq uint64, n int) { e.applyOnline(gen, seq, n) },
	})
	e.poller = p
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	e.notifyStateChange(StateSignedIn)
	p.Start()
}

func (e *Engine) deactivate() {
	e.mu.Lock()
	p := e.poller
	e.poller = nil
	e.gen++
	e.session = nil
	e.state = StateSignedOut
	e.feed = nil
	e.online = 0
	e.detector.Reset()
	e.draft = Draft{}
	e.sending = false
	e.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	e.notifyStateChange(StateSignedOut)
	e.notifyDraft()
	if e.OnFeed != nil {
		e.OnFeed(nil)
	}
}

func (e *Engine) applyFeed(gen, seq uint64, msgs []model.Message) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	if !e.feedSeq.accept(seq) {
		e.mu.Unlock()
		slog.Debug("discarding stale feed", "seq", seq)
		return
	}
	e.feed = msgs
	fresh, arrived := e.detector.Observe(msgs)
	s := e.session.Clone()
	snapshot := append([]model.Message(nil), msgs...)
	e.mu.Unlock()

	if e.OnFeed != nil {
		e.OnFeed(snapshot)
	}
	if arrived && e.deps.Notifier != nil && e.deps.Notifier.Notify(s, fresh) {
		if e.OnNotify != nil {
			e.OnNotify(*fresh)
		}
	}
}

func (e *Engine) applyOnline(gen, seq uint64, n int) {
	e.mu.Lock()
	if gen != e.gen || !e.onlineSeq.accept(seq) {
		e.mu.Unlock()
		return
	}
	e.online = n
	e.mu.Unlock()

	if e.OnOnlineCount != nil {
		e.OnOnlineCount(n)
	}
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	e.notifyStateChange(state)
}

func (e *Engine) notifyStateChange(state State) {
	if e.OnStateChange != nil {
		e.OnStateChange(state)
	}
}

func (e *Engine) toast(text string) {
	if e.OnToast != nil {
		e.OnToast(text)
	}
}

// fail reports err through OnError and returns it.
func (e *Engine) fail(err error) error {
	if e.OnError != nil {
		e.OnError(err)
	}
	return err
}

// refreshIfCurrent refreshes the feed if the session has not changed since gen.
func (e *Engine) refreshIfCurrent(ctx context.Context, gen uint64) {
	e.mu.RLock()
	p := e.poller
	same := gen == e.gen
	e.mu.RUnlock()
	if !same || p == nil {
		return
	}
	if err := p.RefreshMessages(ctx); err != nil {
		slog.Warn("refresh after change", "err", err)
	}
}
