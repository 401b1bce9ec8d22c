package client

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is how often the feed is refreshed.
const DefaultPollInterval = 3 * time.Second

// Config holds the client's endpoint and device settings, stored as
// config.yaml next to the binary.
type Config struct {
	AuthURL      string        `yaml:"auth_url"`
	ChatURL      string        `yaml:"chat_url"`
	UploadURL    string        `yaml:"upload_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	AudioInput   string        `yaml:"audio_input,omitempty"`
	AudioOutput  string        `yaml:"audio_output,omitempty"`
	SessionFile  string        `yaml:"session_file,omitempty"`

	path string
}

// DefaultConfig points at a development backend on localhost.
func DefaultConfig() *Config {
	return &Config{
		AuthURL:      "http://localhost:8080/api/auth",
		ChatURL:      "http://localhost:8080/api/chat",
		UploadURL:    "http://localhost:8080/api/upload",
		PollInterval: DefaultPollInterval,
		path:         besideExecutable("config.yaml"),
	}
}

// LoadConfig reads config from path (empty = next to the executable).
// A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		cfg.path = path
	}
	data, err := os.ReadFile(cfg.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("client: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("client: parse config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return cfg, cfg.Validate()
}

// Validate checks that every endpoint is set.
func (c *Config) Validate() error {
	switch {
	case c.AuthURL == "":
		return errors.New("client: config: auth_url is required")
	case c.ChatURL == "":
		return errors.New("client: config: chat_url is required")
	case c.UploadURL == "":
		return errors.New("client: config: upload_url is required")
	}
	return nil
}

// Save writes the config back to its file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}
