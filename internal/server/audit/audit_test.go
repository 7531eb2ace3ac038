package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSink(t *testing.T) {
	s := NewChannelSink(2)
	s.Emit(context.Background(), Event{EventType: EventLoginSuccess, Success: true})

	select {
	case e := <-s.Events():
		assert.Equal(t, EventLoginSuccess, e.EventType)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestChannelSink_FullBufferHonoursContext(t *testing.T) {
	s := NewChannelSink(0)
	s.Emit(context.Background(), Event{EventType: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Emit(ctx, Event{EventType: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a cancelled context")
	}
}

func TestLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLoggerSink(logging.NewJSON(&buf, "debug"))

	s.Emit(context.Background(), Event{
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType: EventRefreshReuseDetected,
		UserID:    "u1",
		TokenID:   "t1",
		IP:        "10.0.0.1",
		Metadata:  map[string]string{"revoked": "3"},
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "audit", line["module"])
	assert.Equal(t, EventRefreshReuseDetected, line["event_type"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "t1", line["token_id"])
	assert.Equal(t, "3", line["revoked"])
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.Emit(context.Background(), Event{})
}
