package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/roulette/pkg/model"
)

func TestFileSessionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	store := NewFileSessionStore(path)

	s, err := store.Load()
	if err != nil || s != nil {
		t.Fatalf("Load on empty store = %v, %v", s, err)
	}

	want := &model.Session{UserID: 3, Username: "carol", NotificationsEnabled: true}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %v, want 0600", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
	if s, _ := store.Load(); s != nil {
		t.Error("session still present after Clear")
	}
}

func TestFileSessionStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("user_id: [not, a, number"), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileSessionStore(path).Load()
	if err != nil || s != nil {
		t.Errorf("Load on corrupt file = %v, %v; want nil, nil", s, err)
	}
}

func TestFileSessionStoreIncompleteRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("username: dave\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if s, _ := NewFileSessionStore(path).Load(); s != nil {
		t.Errorf("incomplete session loaded: %+v", s)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.ChatURL == "" || cfg.AuthURL == "" || cfg.UploadURL == "" {
		t.Error("default endpoints missing")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`auth_url: https://api.example/auth
chat_url: https://api.example/chat
upload_url: https://files.example/upload
poll_interval: 5s
audio_input: USB Mic
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.AudioInput != "USB Mic" {
		t.Errorf("AudioInput = %q", cfg.AudioInput)
	}

	cfg.AudioInput = "Other"
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.AudioInput != "Other" || again.PollInterval != 5*time.Second {
		t.Errorf("reloaded config = %+v", again)
	}
}

func TestLoadConfigMissingEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chat_url: \"\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error")
	}
}
