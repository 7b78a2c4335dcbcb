package sender

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/buffer"
	"github.com/Guliveer/devtrack-agent/internal/models"
	"github.com/Guliveer/devtrack-agent/internal/snapshot"
)

// collector is a test websocket endpoint that records every text frame.
type collector struct {
	server   *httptest.Server
	messages chan []byte
	conns    chan *websocket.Conn
}

func newCollector(t *testing.T) *collector {
	t.Helper()
	c := &collector{
		messages: make(chan []byte, 16),
		conns:    make(chan *websocket.Conn, 16),
	}
	upgrader := websocket.Upgrader{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.conns <- conn
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			c.messages <- msg
		}
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *collector) url() string {
	return EndpointURL(strings.TrimPrefix(c.server.URL, "http://"), false, DefaultPath)
}

func (c *collector) next(t *testing.T) []byte {
	t.Helper()
	select {
	case msg := <-c.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func newFallback(t *testing.T) *buffer.Store {
	t.Helper()
	store, err := buffer.New(filepath.Join(t.TempDir(), "device_info.json"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func newSender(t *testing.T, url string, fallback FallbackStore, timeout time.Duration) *Sender {
	t.Helper()
	s, err := New(Options{URL: url, Timeout: timeout, Fallback: fallback, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(id string) models.Snapshot {
	return models.Snapshot{
		ID:         id,
		CapturedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Identity:   models.SystemIdentity{Hostname: "ws-17"},
		Metrics:    models.SystemMetrics{CPU: models.CPUUsage{OverallUsage: 42}},
		Alerts:     []models.Alert{},
	}
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "ws://collector:8000/ws/device-tracker/", EndpointURL("collector:8000", false, ""))
	assert.Equal(t, "wss://example.com/ws/device-tracker/", EndpointURL("example.com", true, "ws/device-tracker/"))
}

func TestNewRejectsHTTPScheme(t *testing.T) {
	_, err := New(Options{URL: "http://example.com/ws/device-tracker/"})
	assert.Error(t, err)
}

func TestSendDeliversOneTextFrame(t *testing.T) {
	c := newCollector(t)
	fallback := newFallback(t)
	s := newSender(t, c.url(), fallback, time.Second)

	ack, err := s.Send(context.Background(), testSnapshot("a"))
	require.NoError(t, err)
	assert.False(t, ack.Reconnected)

	msg := c.next(t)
	assert.Equal(t, len(msg), ack.Bytes)
	decoded, err := snapshot.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "a", decoded.ID)
	assert.Equal(t, "ws-17", decoded.Identity.Hostname)

	// The connection is reused.
	_, err = s.Send(context.Background(), testSnapshot("b"))
	require.NoError(t, err)
	assert.Equal(t, "b", mustDecode(t, c.next(t)).ID)
	assert.Len(t, c.conns, 1)

	_, ok, err := fallback.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendHandshakeTimeoutWritesFallback(t *testing.T) {
	// Accepts TCP connections but never answers the websocket handshake.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var held []net.Conn
		defer func() {
			for _, conn := range held {
				conn.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, conn)
		}
	}()

	fallback := newFallback(t)
	s := newSender(t, EndpointURL(ln.Addr().String(), false, ""), fallback, 100*time.Millisecond)

	snap := testSnapshot("timeout")
	_, err = s.Send(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "connect", terr.Op)
	assert.True(t, terr.FallbackSaved)

	stored, ok, err := fallback.Load()
	require.NoError(t, err)
	require.True(t, ok)
	want, err := snapshot.Encode(snap)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(stored))
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	fallback := newFallback(t)
	s := newSender(t, EndpointURL(addr, false, ""), fallback, time.Second)

	_, err = s.Send(context.Background(), testSnapshot("refused"))
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))

	stored, ok, err := fallback.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "refused", mustDecode(t, stored).ID)
}

func TestSendUnencodableSnapshotIsDropped(t *testing.T) {
	c := newCollector(t)
	fallback := newFallback(t)
	s := newSender(t, c.url(), fallback, time.Second)

	snap := testSnapshot("nan")
	snap.Metrics.CPU.OverallUsage = math.NaN()

	_, err := s.Send(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "encode", terr.Op)
	assert.False(t, terr.FallbackSaved)

	_, ok, err := fallback.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.connected())
}

func TestSendReconnectsAfterServerClose(t *testing.T) {
	c := newCollector(t)
	s := newSender(t, c.url(), newFallback(t), time.Second)

	_, err := s.Send(context.Background(), testSnapshot("first"))
	require.NoError(t, err)
	c.next(t)

	server := <-c.conns
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart")
	require.NoError(t, server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	server.Close()
	require.Eventually(t, func() bool { return !s.connected() }, 2*time.Second, 10*time.Millisecond)

	ack, err := s.Send(context.Background(), testSnapshot("second"))
	require.NoError(t, err)
	assert.True(t, ack.Reconnected)
	assert.Equal(t, "second", mustDecode(t, c.next(t)).ID)
}

func TestSendRejectedHandshake(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s := newSender(t, EndpointURL(strings.TrimPrefix(server.URL, "http://"), false, ""), nil, time.Second)
	_, err := s.Send(context.Background(), testSnapshot("x"))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func TestFlushFallback(t *testing.T) {
	c := newCollector(t)
	fallback := newFallback(t)
	data, err := snapshot.Encode(testSnapshot("left-over"))
	require.NoError(t, err)
	require.NoError(t, fallback.Store(data))

	s := newSender(t, c.url(), fallback, time.Second)
	flushed, err := s.FlushFallback(context.Background())
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, "left-over", mustDecode(t, c.next(t)).ID)

	_, ok, err := fallback.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	// Nothing left to flush.
	flushed, err = s.FlushFallback(context.Background())
	require.NoError(t, err)
	assert.False(t, flushed)
}

func TestSuccessfulSendClearsStaleFallback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	refused := ln.Addr().String()
	require.NoError(t, ln.Close())

	fallback := newFallback(t)
	offline := newSender(t, EndpointURL(refused, false, ""), fallback, time.Second)
	_, err = offline.Send(context.Background(), testSnapshot("old"))
	require.True(t, IsTransient(err))
	_, ok, err := fallback.Load()
	require.NoError(t, err)
	require.True(t, ok)

	c := newCollector(t)
	s := newSender(t, c.url(), fallback, time.Second)
	_, err = s.Send(context.Background(), testSnapshot("new"))
	require.NoError(t, err)
	assert.Equal(t, "new", mustDecode(t, c.next(t)).ID)

	_, ok, err = fallback.Load()
	require.NoError(t, err)
	assert.False(t, ok, "delivered snapshot supersedes the stored one")

	flushed, err := s.FlushFallback(context.Background())
	require.NoError(t, err)
	assert.False(t, flushed, "older snapshot is never replayed after a newer one")
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "transient", Transient.String())
	assert.Equal(t, "permanent", Permanent.String())
	err := &Error{Class: Transient, Op: "write", Err: context.DeadlineExceeded}
	assert.Equal(t, "transmit write (transient): context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func mustDecode(t *testing.T, data []byte) models.Snapshot {
	t.Helper()
	s, err := snapshot.Decode(data)
	require.NoError(t, err)
	return s
}
