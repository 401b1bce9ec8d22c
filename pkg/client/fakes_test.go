package client

import (
	"context"
	"errors"
	"sync"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *model.Session
	err      error
	settings bool
	updates  []bool
	calls    int
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.session.Clone(), f.err
}

func (f *fakeAuth) Register(ctx context.Context, u, p string) (*model.Session, error) {
	return f.Login(ctx, u, p)
}

func (f *fakeAuth) FetchSettings(context.Context, int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, nil
}

func (f *fakeAuth) UpdateSettings(_ context.Context, _ int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, enabled)
	return nil
}

// fakeChat serves a mutable feed and records mutations.
type fakeChat struct {
	mu       sync.Mutex
	feed     []model.Message
	online   int
	fetchErr error
	postErr  error
	delErr   error
	fetches  int
	posts    []protocol.PostMessageRequest
	deletes  []int64
	reports  []protocol.ReportRequest
	nextID   int64
}

func (f *fakeChat) FetchMessages(context.Context) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.Message(nil), f.feed...), nil
}

func (f *fakeChat) FetchOnlineCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online, nil
}

func (f *fakeChat) PostMessage(_ context.Context, req protocol.PostMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, req)
	f.nextID++
	uid := req.UserID
	f.feed = append(f.feed, model.Message{
		ID: 1000 + f.nextID, Username: req.Username, Message: req.Message,
		MessageType: model.ParseMessageType(req.MessageType), MediaURL: req.MediaURL, AuthorUserID: &uid,
	})
	return nil
}

func (f *fakeChat) DeleteMessage(_ context.Context, id, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.delErr
}

func (f *fakeChat) ReportMessage(_ context.Context, id, uid int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, protocol.ReportRequest{Action: protocol.ActionReport, MessageID: id, UserID: uid, Reason: reason})
	return nil
}

func (f *fakeChat) setFeed(msgs ...model.Message) {
	f.mu.Lock()
	f.feed = msgs
	f.mu.Unlock()
}

func (f *fakeChat) counts() (fetches, posts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, len(f.posts)
}

type fakeUploader struct {
	mu      sync.Mutex
	url     string
	err     error
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, _ *media.Attachment) (string, error) {
	f.mu.Lock()
	f.calls++
	url, err := f.url, f.err
	started, gate := f.started, f.gate
	f.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return url, err
}

// hold makes uploads block until release is closed. started receives once
// per upload that reaches the block.
func (f *fakeUploader) hold() (started <-chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{}, 4)
	f.gate = make(chan struct{})
	return f.started, f.gate
}

type fakePlatform struct {
	mu       sync.Mutex
	perm     Permission
	grant    Permission
	requests int
	shown    []string
}

func (f *fakePlatform) Permission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm
}

func (f *fakePlatform) RequestPermission(context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.perm = f.grant
	return f.perm, nil
}

func (f *fakePlatform) Show(_, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, body)
	return nil
}

func (f *fakePlatform) shownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

type fakeSound struct {
	played chan struct{}
	err    error
}

func newFakeSound() *fakeSound { return &fakeSound{played: make(chan struct{}, 16)} }

func (f *fakeSound) Play() error {
	f.played <- struct{}{}
	return f.err
}

var errBoom = errors.New("boom")

func msg(id int64, user string, uid int64, text string) model.Message {
	return model.Message{ID: id, Username: user, Message: text, AuthorUserID: &uid}
}
