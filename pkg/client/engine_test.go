package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
)

type harness struct {
	e        *Engine
	auth     *fakeAuth
	chat     *fakeChat
	uploader *fakeUploader
	platform *fakePlatform
	sound    *fakeSound
	store    *MemorySessionStore

	mu       sync.Mutex
	feeds    int
	notified []model.Message
	toasts   []string
	errs     []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		auth:     &fakeAuth{session: &model.Session{UserID: 1, Username: "alice", NotificationsEnabled: true}},
		chat:     &fakeChat{online: 2},
		uploader: &fakeUploader{url: "https://files.example/dl/1/cat.png"},
		platform: &fakePlatform{perm: PermissionDefault, grant: PermissionGranted},
		sound:    newFakeSound(),
		store:    &MemorySessionStore{},
	}
	h.e = NewEngine(Deps{
		Auth:         h.auth,
		Chat:         h.chat,
		Uploader:     h.uploader,
		Sessions:     h.store,
		Notifier:     NewNotifier(h.platform, h.sound),
		PollInterval: time.Hour, // ticks are driven by Refresh
	})
	h.e.OnFeed = func([]model.Message) {
		h.mu.Lock()
		h.feeds++
		h.mu.Unlock()
	}
	h.e.OnNotify = func(m model.Message) {
		h.mu.Lock()
		h.notified = append(h.notified, m)
		h.mu.Unlock()
	}
	h.e.OnToast = func(s string) {
		h.mu.Lock()
		h.toasts = append(h.toasts, s)
		h.mu.Unlock()
	}
	h.e.OnError = func(err error) {
		h.mu.Lock()
		h.errs = append(h.errs, err)
		h.mu.Unlock()
	}
	t.Cleanup(h.e.Logout)
	return h
}

func (h *harness) notifications() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notified)
}

func (h *harness) feedEvents() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.feeds
}

// login signs in and waits for the first poll to land.
func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.e.Login(context.Background(), "alice", "pw"))
	waitFor(t, func() bool { return h.feedEvents() >= 1 && h.e.OnlineCount() == 2 })
}

func TestStartRestoresSessionWithoutNetwork(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(&model.Session{UserID: 9, Username: "zed", NotificationsEnabled: true}))

	restored, err := h.e.Start()
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, StateSignedIn, h.e.GetState())
	assert.Equal(t, "zed", h.e.Session().Username)
	assert.Zero(t, h.auth.calls, "auth endpoint contacted on restore")
}

func TestStartWithoutSession(t *testing.T) {
	h := newHarness(t)
	restored, err := h.e.Start()
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, StateSignedOut, h.e.GetState())
}

func TestLoginPersistsSessionAndAsksPermission(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	s, _ := h.store.Load()
	require.NotNil(t, s)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, 1, h.platform.requests)
	assert.Equal(t, 2, h.e.OnlineCount())
}

func TestLoginFailureStaysSignedOut(t *testing.T) {
	h := newHarness(t)
	h.auth.err = &APIError{Status: 401, Message: "Invalid credentials"}
	err := h.e.Login(context.Background(), "alice", "bad")
	require.EqualError(t, err, "Invalid credentials")
	assert.Equal(t, StateSignedOut, h.e.GetState())
	s, _ := h.store.Load()
	assert.Nil(t, s)
}

func TestLoginValidatesInputFirst(t *testing.T) {
	h := newHarness(t)
	err := h.e.Login(context.Background(), "", "pw")
	require.Error(t, err)
	assert.Zero(t, h.auth.calls)
}

func TestFeedReplacedEachTick(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "bob", 2, "a"), msg(2, "bob", 2, "b"))
	h.login(t)
	ctx := context.Background()

	snapshots := [][]model.Message{
		{msg(2, "bob", 2, "b"), msg(3, "bob", 2, "c")},
		{msg(3, "bob", 2, "c")},
		{},
	}
	for i, snap := range snapshots {
		h.chat.setFeed(snap...)
		require.NoError(t, h.e.Refresh(ctx))
		if diff := cmp.Diff(snap, h.e.Feed(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("tick %d feed mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestNewMessageNotifications(t *testing.T) {
	h := newHarness(t)
	h.platform.perm = PermissionGranted
	backlog := make([]model.Message, 0, 6)
	for i := 1; i <= 5; i++ {
		backlog = append(backlog, msg(int64(i), "bob", 2, "old"))
	}
	h.chat.setFeed(backlog...)
	h.login(t)
	assert.Zero(t, h.notifications(), "backlog must not notify")

	h.chat.setFeed(append(backlog, msg(6, "bob", 2, "fresh"))...)
	require.NoError(t, h.e.Refresh(context.Background()))
	require.Equal(t, 1, h.notifications())
	assert.Equal(t, int64(6), h.notified[0].ID)
	assert.Equal(t, []string{"bob: fresh"}, h.platform.shown)

	select {
	case <-h.sound.played:
	case <-time.After(time.Second):
		t.Fatal("sound not played")
	}
}

func TestOwnMessageNeverNotifies(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "bob", 2, "x"))
	h.login(t)

	h.chat.setFeed(msg(1, "bob", 2, "x"), msg(2, "alice", 1, "mine"))
	require.NoError(t, h.e.Refresh(context.Background()))
	assert.Zero(t, h.notifications())
}

func TestDisableThenEnableNotifications(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "bob", 2, "x"))
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.e.SetNotificationsEnabled(ctx, false))
	h.chat.setFeed(msg(1, "bob", 2, "x"), msg(2, "bob", 2, "y"))
	require.NoError(t, h.e.Refresh(ctx))
	assert.Zero(t, h.notifications())

	require.NoError(t, h.e.SetNotificationsEnabled(ctx, true))
	h.chat.setFeed(msg(1, "bob", 2, "x"), msg(2, "bob", 2, "y"), msg(3, "bob", 2, "z"))
	require.NoError(t, h.e.Refresh(ctx))
	assert.Equal(t, 1, h.notifications())
	assert.Equal(t, []bool{false, true}, h.auth.updates)

	s, _ := h.store.Load()
	assert.True(t, s.NotificationsEnabled)
}

func TestSyncSettings(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.auth.settings = false
	require.NoError(t, h.e.SyncSettings(context.Background()))
	assert.False(t, h.e.Session().NotificationsEnabled)
	s, _ := h.store.Load()
	assert.False(t, s.NotificationsEnabled)
}

func TestStaleResultsIgnored(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.e.mu.RLock()
	gen := h.e.gen
	h.e.mu.RUnlock()

	newer := []model.Message{msg(10, "bob", 2, "new")}
	older := []model.Message{msg(9, "bob", 2, "old")}
	h.e.applyFeed(gen, 100, newer)
	h.e.applyFeed(gen, 99, older)
	assert.Equal(t, newer, h.e.Feed())

	h.e.Logout()
	h.e.applyFeed(gen, 101, older)
	h.e.applyOnline(gen, 101, 42)
	assert.Empty(t, h.e.Feed())
	assert.Zero(t, h.e.OnlineCount())
}

func TestLogoutStopsPolling(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.e.Logout()

	assert.Equal(t, StateSignedOut, h.e.GetState())
	assert.ErrorIs(t, h.e.Refresh(context.Background()), ErrNotSignedIn)
	s, _ := h.store.Load()
	assert.Nil(t, s)
}

func TestSubmitBlankIsNoop(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	fetches, _ := h.chat.counts()

	h.e.SetDraftText("   \n\t")
	require.NoError(t, h.e.Submit(context.Background()))

	f2, posts := h.chat.counts()
	assert.Zero(t, posts)
	assert.Equal(t, fetches, f2)
	assert.Zero(t, h.uploader.calls)
	assert.Equal(t, "   \n\t", h.e.Draft().Text)
}

func TestSubmitTextSuccess(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.e.SetDraftText(" hello world ")
	require.NoError(t, h.e.Submit(context.Background()))

	assert.Empty(t, h.e.Draft().Text)
	feed := h.e.Feed()
	require.NotEmpty(t, feed)
	assert.Equal(t, "hello world", feed[len(feed)-1].Message)
	assert.Equal(t, "text", h.chat.posts[0].MessageType)
	assert.Zero(t, h.uploader.calls)
	assert.False(t, h.e.Sending())
}

func TestSubmitWithAttachment(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0600))
	require.NoError(t, h.e.AttachFile(path))
	require.NoError(t, h.e.Submit(context.Background()))

	require.Len(t, h.chat.posts, 1)
	post := h.chat.posts[0]
	assert.Equal(t, "image", post.MessageType)
	assert.Equal(t, h.uploader.url, post.MediaURL)
	assert.Nil(t, h.e.Draft().Attachment)
}

func TestSubmitAudioAttachmentType(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.NoError(t, h.e.AttachBytes("song.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x0f")))
	require.NoError(t, h.e.Submit(context.Background()))
	require.Len(t, h.chat.posts, 1)
	assert.Equal(t, "audio", h.chat.posts[0].MessageType)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.chat.postErr = &APIError{Status: 400, Message: "Message cannot be empty"}

	h.e.SetDraftText("retry me")
	err := h.e.Submit(context.Background())
	require.EqualError(t, err, "Message cannot be empty")
	assert.Equal(t, "retry me", h.e.Draft().Text)
	require.Len(t, h.errs, 1)
}

func TestSubmitUploadFailureDoesNotPost(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.uploader.err = ErrUploadFailed

	require.NoError(t, h.e.AttachBytes("cat.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	err := h.e.Submit(context.Background())
	require.ErrorIs(t, err, ErrUploadFailed)
	_, posts := h.chat.counts()
	assert.Zero(t, posts)
	assert.NotNil(t, h.e.Draft().Attachment)
}

func TestSubmitInProgress(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.e.SetDraftText("x")

	h.e.mu.Lock()
	h.e.sending = true
	h.e.mu.Unlock()
	require.ErrorIs(t, h.e.Submit(context.Background()), ErrSendInProgress)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSubmitAfterLogoutMidUploadDoesNotPost(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	started, release := h.uploader.hold()

	require.NoError(t, h.e.AttachBytes("cat.png", pngBytes))
	done := make(chan error, 1)
	go func() { done <- h.e.Submit(context.Background()) }()
	<-started

	h.e.Logout()
	assert.False(t, h.e.Sending())

	// A new session can send while the old upload is still stuck.
	h.login(t)
	h.e.SetDraftText("fresh")
	require.NoError(t, h.e.Submit(context.Background()))

	close(release)
	require.NoError(t, <-done)

	h.chat.mu.Lock()
	posts := append([]protocol.PostMessageRequest(nil), h.chat.posts...)
	h.chat.mu.Unlock()
	require.Len(t, posts, 1)
	assert.Equal(t, "fresh", posts[0].Message)
	assert.Empty(t, posts[0].MediaURL)
	assert.False(t, h.e.Sending())
}

func TestSubmitSkipsClearedAttachment(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	started, release := h.uploader.hold()

	h.e.SetDraftText("look")
	require.NoError(t, h.e.AttachBytes("cat.png", pngBytes))
	done := make(chan error, 1)
	go func() { done <- h.e.Submit(context.Background()) }()
	<-started

	h.e.ClearAttachment()
	close(release)
	require.NoError(t, <-done)

	_, posts := h.chat.counts()
	assert.Zero(t, posts)
	assert.Equal(t, "look", h.e.Draft().Text)
	assert.False(t, h.e.Sending())
}

func TestSubmitKeepsTextTypedDuringUpload(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	started, release := h.uploader.hold()

	h.e.SetDraftText("caption")
	require.NoError(t, h.e.AttachBytes("cat.png", pngBytes))
	done := make(chan error, 1)
	go func() { done <- h.e.Submit(context.Background()) }()
	<-started

	h.e.SetDraftText("next message")
	close(release)
	require.NoError(t, <-done)

	_, posts := h.chat.counts()
	require.Equal(t, 1, posts)
	assert.Equal(t, "caption", h.chat.posts[0].Message)
	d := h.e.Draft()
	assert.Equal(t, "next message", d.Text)
	assert.Nil(t, d.Attachment)
}

func TestAttachRejectedBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	err := h.e.AttachBytes("big.png", make([]byte, media.MaxAttachmentSize+1))
	require.ErrorIs(t, err, media.ErrFileTooLarge)
	err = h.e.AttachBytes("doc.txt", []byte("plain text here"))
	require.ErrorIs(t, err, media.ErrInvalidMimeType)

	assert.Nil(t, h.e.Draft().Attachment)
	assert.Zero(t, h.uploader.calls)
}

func TestRecordingUnavailable(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.e.StartRecording(context.Background()), ErrRecordingUnavailable)
	assert.NoError(t, h.e.StopRecording())
	assert.False(t, h.e.Recording())
}

func TestRemoveOwnMessage(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "alice", 1, "mine"), msg(2, "bob", 2, "theirs"))
	h.login(t)
	fetches, _ := h.chat.counts()

	res := h.e.Remove(context.Background(), 1)
	assert.True(t, res.OK())
	assert.Equal(t, []int64{1}, h.chat.deletes)
	f2, _ := h.chat.counts()
	assert.Greater(t, f2, fetches, "feed not refreshed")
	assert.Equal(t, []string{"Message deleted"}, h.toasts)
}

func TestRemoveFailureStillAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "alice", 1, "mine"))
	h.login(t)
	h.chat.delErr = errBoom

	res := h.e.Remove(context.Background(), 1)
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, errBoom))
	assert.Equal(t, []string{"Message deleted"}, h.toasts)
}

func TestModerationPermissions(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(1, "alice", 1, "mine"), msg(2, "bob", 2, "theirs"))
	h.login(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.e.Remove(ctx, 2).Err, ErrNotPermitted)
	assert.ErrorIs(t, h.e.Report(ctx, 1).Err, ErrNotPermitted)
	assert.ErrorIs(t, h.e.Remove(ctx, 99).Err, ErrMessageNotFound)
	assert.Empty(t, h.chat.deletes)
	assert.Empty(t, h.chat.reports)
}

func TestReportOthersMessage(t *testing.T) {
	h := newHarness(t)
	h.chat.setFeed(msg(2, "bob", 2, "theirs"))
	h.login(t)
	fetches, _ := h.chat.counts()

	res := h.e.Report(context.Background(), 2)
	require.True(t, res.OK())
	require.Len(t, h.chat.reports, 1)
	assert.Equal(t, ReportReason, h.chat.reports[0].Reason)
	assert.Equal(t, []string{"Report sent"}, h.toasts)
	f2, _ := h.chat.counts()
	assert.Equal(t, fetches, f2, "report must not refresh")
}
