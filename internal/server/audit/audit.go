// Package audit carries security-relevant events of the token lifecycle to
// a pluggable sink.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

const (
	EventLoginSuccess         = "login_success"
	EventLoginFailure         = "login_failure"
	EventRefreshRotated       = "refresh_rotated"
	EventRefreshRejected      = "refresh_rejected"
	EventRefreshReuseDetected = "refresh_reuse_detected"
	EventRefreshRevoked       = "refresh_revoked"
	EventSessionsRevoked      = "sessions_revoked"
)

// Event never carries secrets; TokenID is the record id, not the token.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events. Emit must not block the caller for long.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NopSink drops audit events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// LoggerSink writes one structured log line per event. Failures and reuse
// detection are logged at warn level.
type LoggerSink struct {
	logger logging.Logger
}

func NewLoggerSink(l logging.Logger) *LoggerSink {
	return &LoggerSink{logger: l.With("module", "audit")}
}

func (s *LoggerSink) Emit(ctx context.Context, e Event) {
	args := []any{
		"event_type", e.EventType,
		"timestamp", e.Timestamp,
		"success", e.Success,
	}
	if e.UserID != "" {
		args = append(args, "user_id", e.UserID)
	}
	if e.TokenID != "" {
		args = append(args, "token_id", e.TokenID)
	}
	if e.IP != "" {
		args = append(args, "ip", e.IP)
	}
	if e.Error != "" {
		args = append(args, "error", e.Error)
	}
	for k, v := range e.Metadata {
		args = append(args, k, v)
	}

	if !e.Success {
		s.logger.Warn(ctx, "audit", args...)
		return
	}
	s.logger.Info(ctx, "audit", args...)
}
