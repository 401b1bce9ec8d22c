package server

import (
	"fmt"
	"time"

	"github.com/NicolasHaas/roulette/pkg/protocol"
	"github.com/NicolasHaas/roulette/pkg/store"
	"gopkg.in/yaml.v3"
)

// MessageYAML represents a message in YAML export.
type MessageYAML struct {
	ID        int64  `yaml:"id"`
	Author    string `yaml:"author"`
	AuthorID  int64  `yaml:"author_id,omitempty"`
	Type      string `yaml:"type"`
	Text      string `yaml:"text,omitempty"`
	MediaURL  string `yaml:"media_url,omitempty"`
	Timestamp string `yaml:"timestamp"`
}

// MessagesExport is the top-level YAML for message export.
type MessagesExport struct {
	Online   int           `yaml:"online"`
	Reports  int           `yaml:"reports"`
	Messages []MessageYAML `yaml:"messages"`
}

// ExportMessagesYAML exports the current feed window as YAML.
func ExportMessagesYAML(st store.DataStore, cfg Config, now func() time.Time) ([]byte, error) {
	msgs, err := st.ListMessages(protocol.FeedLimit)
	if err != nil {
		return nil, fmt.Errorf("export messages: %w", err)
	}
	online, err := st.CountOnline(now().Add(-cfg.OnlineWindow))
	if err != nil {
		return nil, fmt.Errorf("export messages: %w", err)
	}
	reports, err := st.CountReports()
	if err != nil {
		return nil, fmt.Errorf("export messages: %w", err)
	}

	export := MessagesExport{Online: online, Reports: reports, Messages: []MessageYAML{}}
	for _, m := range msgs {
		entry := MessageYAML{
			ID:        m.ID,
			Author:    m.Username,
			Type:      m.Type().String(),
			Text:      m.Message,
			MediaURL:  m.MediaURL,
			Timestamp: m.Timestamp,
		}
		if m.AuthorUserID != nil {
			entry.AuthorID = *m.AuthorUserID
		}
		export.Messages = append(export.Messages, entry)
	}
	return yaml.Marshal(&export)
}
