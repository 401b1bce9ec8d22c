package store_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/store"
)

func NewTestSqlConn(t *testing.T) (*store.Store, error) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("store_test: failed to open db: %w", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st, nil
}

// withStores runs fn against the SQLite store and the memory store.
func withStores(t *testing.T, fn func(t *testing.T, st store.DataStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		st, err := NewTestSqlConn(t)
		if err != nil {
			t.Fatalf("failed to open test connection: %v", err)
		}
		fn(t, st)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory())
	})
}

func mustUser(t *testing.T, st store.DataStore, name string) *model.User {
	t.Helper()
	u, err := st.CreateUser(name, "hash-"+name)
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", name, err)
	}
	return u
}

func mustPost(t *testing.T, st store.DataStore, u *model.User, text string) model.Message {
	t.Helper()
	id := u.ID
	m := model.Message{Username: u.Username, Message: text, AuthorUserID: &id}
	if err := st.CreateMessage(&m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return m
}

func TestCreateUser(t *testing.T) {
	type tcase struct {
		username  string
		expectErr bool
	}

	tcases := map[string]tcase{
		"minimum_required_fields": {username: "johndoe"},
		"injection_username":      {username: "' OR '1'='1", expectErr: true},
		"empty_username":          {username: "", expectErr: true},
		"too_long_username":       {username: "24433252080542468109190329288548376491503980265648043643151614656", expectErr: true},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			withStores(t, func(t *testing.T, st store.DataStore) {
				u, err := st.CreateUser(tc.username, "h")
				if tc.expectErr {
					if err == nil {
						t.Fatalf("expected error, got user %+v", u)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if u.ID == 0 || !u.NotificationsEnabled {
					t.Errorf("unexpected user %+v", u)
				}
			})
		})
	}
}

func TestDuplicateUsername(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		mustUser(t, st, "alice")
		if _, err := st.CreateUser("alice", "x"); !errors.Is(err, store.ErrUsernameTaken) {
			t.Fatalf("err = %v, want ErrUsernameTaken", err)
		}
	})
}

func TestGetUser(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		created := mustUser(t, st, "alice")

		byName, hash, err := st.GetUserByUsername("alice")
		if err != nil {
			t.Fatal(err)
		}
		if hash != "hash-alice" {
			t.Errorf("hash = %q", hash)
		}
		if diff := cmp.Diff(created, byName); diff != "" {
			t.Errorf("GetUserByUsername mismatch (-want +got):\n%s", diff)
		}

		byID, err := st.GetUser(created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(created, byID); diff != "" {
			t.Errorf("GetUser mismatch (-want +got):\n%s", diff)
		}

		missing, hash, err := st.GetUserByUsername("nobody")
		if err != nil || missing != nil || hash != "" {
			t.Errorf("missing user = %v, %q, %v", missing, hash, err)
		}
		if u, err := st.GetUser(999); err != nil || u != nil {
			t.Errorf("GetUser(999) = %v, %v", u, err)
		}
	})
}

func TestSetNotifications(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		u := mustUser(t, st, "alice")
		if err := st.SetNotifications(u.ID, false); err != nil {
			t.Fatal(err)
		}
		got, _ := st.GetUser(u.ID)
		if got.NotificationsEnabled {
			t.Error("notifications still enabled")
		}
		if err := st.SetNotifications(999, true); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestCountOnline(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
		a := mustUser(t, st, "alice")
		b := mustUser(t, st, "bob")
		mustUser(t, st, "carol") // never seen

		if err := st.TouchLastSeen(a.ID, now.Add(-time.Minute)); err != nil {
			t.Fatal(err)
		}
		if err := st.TouchLastSeen(b.ID, now.Add(-10*time.Minute)); err != nil {
			t.Fatal(err)
		}

		n, err := st.CountOnline(now.Add(-5 * time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("online = %d, want 1", n)
		}
		if err := st.TouchLastSeen(999, now); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMessagesWindow(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		u := mustUser(t, st, "alice")
		for i := 1; i <= 7; i++ {
			mustPost(t, st, u, fmt.Sprintf("m%d", i))
		}

		msgs, err := st.ListMessages(5)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, m := range msgs {
			got = append(got, m.Message)
		}
		want := []string{"m3", "m4", "m5", "m6", "m7"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("window mismatch (-want +got):\n%s", diff)
		}
		if *msgs[0].AuthorUserID != u.ID || msgs[0].Type() != model.MessageText {
			t.Errorf("unexpected message %+v", msgs[0])
		}
		if _, err := time.Parse(time.RFC3339, msgs[0].Timestamp); err != nil {
			t.Errorf("timestamp %q: %v", msgs[0].Timestamp, err)
		}
	})
}

func TestListMessagesEmpty(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		msgs, err := st.ListMessages(50)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]model.Message{}, msgs, cmpopts.EquateEmpty()); diff != "" {
			t.Error(diff)
		}
	})
}

func TestMediaMessage(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		u := mustUser(t, st, "alice")
		id := u.ID
		m := model.Message{Username: "alice", MessageType: model.MessageImage, MediaURL: "https://f/dl/1/a.png", AuthorUserID: &id}
		if err := st.CreateMessage(&m); err != nil {
			t.Fatal(err)
		}
		msgs, _ := st.ListMessages(50)
		if len(msgs) != 1 || msgs[0].MessageType != model.MessageImage || msgs[0].MediaURL != m.MediaURL {
			t.Errorf("got %+v", msgs)
		}

		bad := model.Message{Username: "alice", MessageType: model.MessageAudio, AuthorUserID: &id}
		if err := st.CreateMessage(&bad); !errors.Is(err, model.ErrMessageMediaMissing) {
			t.Errorf("err = %v, want ErrMessageMediaMissing", err)
		}
		empty := model.Message{Username: "alice", Message: "  ", AuthorUserID: &id}
		if err := st.CreateMessage(&empty); !errors.Is(err, model.ErrMessageBodyEmpty) {
			t.Errorf("err = %v, want ErrMessageBodyEmpty", err)
		}
	})
}

func TestDeleteMessage(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		alice := mustUser(t, st, "alice")
		bob := mustUser(t, st, "bob")
		m := mustPost(t, st, alice, "hello")

		if err := st.DeleteMessage(m.ID, bob.ID); !errors.Is(err, store.ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
		if err := st.DeleteMessage(m.ID, alice.ID); err != nil {
			t.Fatal(err)
		}
		if err := st.DeleteMessage(m.ID, alice.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		msgs, _ := st.ListMessages(50)
		if len(msgs) != 0 {
			t.Errorf("messages left: %+v", msgs)
		}
	})
}

func TestReports(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		alice := mustUser(t, st, "alice")
		bob := mustUser(t, st, "bob")
		m := mustPost(t, st, alice, "spam")
		if err := st.CreateReport(m.ID, bob.ID, "inappropriate content"); err != nil {
			t.Fatal(err)
		}
		n, err := st.CountReports()
		if err != nil || n != 1 {
			t.Errorf("CountReports = %d, %v", n, err)
		}
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	st, err := store.New(path)
	if err != nil {
		t.Fatal(err)
	}
	mustUser(t, st, "alice")
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = store.New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	u, _, err := st.GetUserByUsername("alice")
	if err != nil || u == nil {
		t.Fatalf("user lost after reopen: %v, %v", u, err)
	}
}
