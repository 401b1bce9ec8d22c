package server

import (
	"fmt"
	"net/http"
	"time"
)

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP roulette_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE roulette_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "roulette_uptime_seconds %f\n", uptime)

	write("roulette_http_requests_total", "HTTP requests served.", "counter",
		m.Requests.Load())

	write("roulette_registrations_total", "Accounts created.", "counter",
		m.Registrations.Load())
	write("roulette_auth_success_total", "Successful logins.", "counter",
		m.SuccessfulAuths.Load())
	write("roulette_auth_failed_total", "Rejected logins.", "counter",
		m.FailedAuths.Load())

	write("roulette_messages_posted_total", "Chat messages stored.", "counter",
		m.MessagesPosted.Load())
	write("roulette_messages_deleted_total", "Chat messages deleted.", "counter",
		m.MessagesDeleted.Load())
	write("roulette_reports_total", "Moderation reports filed.", "counter",
		m.Reports.Load())

	write("roulette_uploads_total", "Objects stored.", "counter",
		m.Uploads.Load())
	write("roulette_upload_bytes_total", "Bytes stored.", "counter",
		m.UploadBytes.Load())
}

// handleStats writes the metrics snapshot as JSON.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintln(w, s.metrics.JSON())
}
