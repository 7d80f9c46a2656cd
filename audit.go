package forumauth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/forumauth/internal/audit"
)

// AuditEvent is one security-relevant record: a login, renewal or logout
// outcome.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's async dispatcher. Emit
// runs on the dispatcher goroutine, never on the request path.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel; useful in tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
