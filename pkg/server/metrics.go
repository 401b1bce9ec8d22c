package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	Requests atomic.Int64 // HTTP requests served

	// Auth counters
	Registrations   atomic.Int64 // accounts created
	SuccessfulAuths atomic.Int64 // successful logins
	FailedAuths     atomic.Int64 // rejected logins

	// Chat counters
	MessagesPosted  atomic.Int64 // messages stored
	MessagesDeleted atomic.Int64 // messages removed by their author
	Reports         atomic.Int64 // moderation reports filed

	// Object storage counters
	Uploads     atomic.Int64 // objects stored
	UploadBytes atomic.Int64 // total bytes stored
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Requests int64 `json:"requests"`

	Registrations   int64 `json:"registrations"`
	SuccessfulAuths int64 `json:"successful_auths"`
	FailedAuths     int64 `json:"failed_auths"`

	MessagesPosted  int64 `json:"messages_posted"`
	MessagesDeleted int64 `json:"messages_deleted"`
	Reports         int64 `json:"reports"`

	Uploads     int64 `json:"uploads"`
	UploadBytes int64 `json:"upload_bytes"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:          uptime.Truncate(time.Second).String(),
		UptimeSeconds:   int64(uptime.Seconds()),
		Requests:        m.Requests.Load(),
		Registrations:   m.Registrations.Load(),
		SuccessfulAuths: m.SuccessfulAuths.Load(),
		FailedAuths:     m.FailedAuths.Load(),
		MessagesPosted:  m.MessagesPosted.Load(),
		MessagesDeleted: m.MessagesDeleted.Load(),
		Reports:         m.Reports.Load(),
		Uploads:         m.Uploads.Load(),
		UploadBytes:     m.UploadBytes.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"requests", s.Requests,
		"logins", s.SuccessfulAuths,
		"failed_logins", s.FailedAuths,
		"messages", s.MessagesPosted,
		"uploads", s.Uploads,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
