package audit

import (
	"log"

	"github.com/gptlisting/backend/internal/domain"
)

// LogSink writes audit events to the process log, one line per decision.
// It is the default sink; a telemetry-backed sink can replace it without
// touching any pipeline code.
type LogSink struct{}

// NewLogSink creates a log-backed audit sink
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Record writes one decision event
func (s *LogSink) Record(event domain.AuditEvent) {
	if event.Reason != "" {
		log.Printf("[AUDIT] stage=%s decision=%s url=%s reason=%q", event.Stage, event.Decision, event.URL, event.Reason)
		return
	}
	log.Printf("[AUDIT] stage=%s decision=%s url=%s", event.Stage, event.Decision, event.URL)
}

// NopSink discards every event; used in tests
type NopSink struct{}

// Record implements domain.AuditSink
func (NopSink) Record(domain.AuditEvent) {}
