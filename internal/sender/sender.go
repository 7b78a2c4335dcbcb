// Package sender implements the streaming snapshot transmitter.
// It keeps one websocket connection to the collector open across cycles and
// writes each snapshot as a single JSON text frame. A failed delivery never
// escapes as a fatal error: transient failures are persisted to the local
// fallback store, permanent ones are dropped.
package sender

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/models"
	"github.com/Guliveer/devtrack-agent/internal/snapshot"
)

const (
	// DefaultTimeout bounds one send, including any connection attempt.
	DefaultTimeout = 5 * time.Second

	// DefaultPath is the collector's websocket endpoint.
	DefaultPath = "/ws/device-tracker/"

	closeTimeout = time.Second
)

// FallbackStore persists the latest snapshot that could not be delivered.
type FallbackStore interface {
	Store(data []byte) error
	Load() (data []byte, ok bool, err error)
	Clear() error
}

// Ack confirms the transport accepted a snapshot.
type Ack struct {
	Bytes  int
	SentAt time.Time
	// Reconnected is true when a previously open connection had to be
	// replaced for this send.
	Reconnected bool
}

// Options configures a Sender.
type Options struct {
	URL      string
	Timeout  time.Duration
	Fallback FallbackStore
	Logger   *zap.Logger
	// Dialer overrides the websocket dialer; its HandshakeTimeout is
	// replaced by Timeout.
	Dialer *websocket.Dialer
}

// Sender delivers snapshots over a persistent websocket connection.
// Sends are serialized; it is safe for concurrent use.
type Sender struct {
	url      string
	timeout  time.Duration
	fallback FallbackStore
	logger   *zap.Logger
	dialer   websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	dead    chan struct{}
	hadConn bool
}

// EndpointURL builds ws://host/path, or wss:// when secure is set.
func EndpointURL(host string, secure bool, path string) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: scheme, Host: host, Path: path}
	return u.String()
}

// New creates a Sender. No connection is made until the first send.
func New(opts Options) (*Sender, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dialer := *websocket.DefaultDialer
	if opts.Dialer != nil {
		dialer = *opts.Dialer
	}
	dialer.HandshakeTimeout = opts.Timeout

	return &Sender{
		url:      opts.URL,
		timeout:  opts.Timeout,
		fallback: opts.Fallback,
		logger:   opts.Logger,
		dialer:   dialer,
	}, nil
}

// Send encodes s and delivers it. Every failure is an *Error: a Permanent
// one when the snapshot cannot be encoded (nothing is stored), a Transient
// one otherwise (the encoded snapshot is written to the fallback store).
// A successful send clears the fallback store.
func (s *Sender) Send(ctx context.Context, snap models.Snapshot) (Ack, error) {
	data, err := snapshot.Encode(snap)
	if err != nil {
		s.logger.Error("Dropping snapshot that cannot be encoded",
			zap.String("snapshot", snap.ID),
			zap.Error(err))
		return Ack{}, &Error{Class: Permanent, Op: "encode", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ack, err := s.sendLocked(ctx, data)
	if err != nil {
		return ack, err
	}
	// A newer snapshot reached the collector; an older unsent one must not
	// be replayed after it.
	if s.fallback != nil {
		if err := s.fallback.Clear(); err != nil {
			s.logger.Warn("Failed to clear superseded fallback snapshot", zap.Error(err))
		}
	}
	return ack, nil
}

// FlushFallback re-sends a snapshot left in the fallback store by an
// earlier run and removes it once delivered. An empty store is a no-op.
func (s *Sender) FlushFallback(ctx context.Context) (bool, error) {
	if s.fallback == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.fallback.Load()
	if err != nil || !ok {
		return false, err
	}

	s.logger.Info("Flushing fallback snapshot", zap.Int("bytes", len(data)))
	if _, err := s.sendLocked(ctx, data); err != nil {
		return false, err
	}
	if err := s.fallback.Clear(); err != nil {
		return true, fmt.Errorf("clear fallback: %w", err)
	}
	return true, nil
}

// connected reports whether a live connection is open.
func (s *Sender) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.isDead()
}

// Close sends a close frame and tears the connection down.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "agent stopping")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Sender) sendLocked(ctx context.Context, data []byte) (Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ack, op, err := s.deliver(ctx, data)
	if err == nil {
		return ack, nil
	}

	terr := &Error{Class: Transient, Op: op, Err: err}
	if s.fallback != nil {
		if storeErr := s.fallback.Store(data); storeErr != nil {
			s.logger.Error("Failed to write fallback snapshot", zap.Error(storeErr))
		} else {
			terr.FallbackSaved = true
		}
	}
	s.logger.Warn("Send failed",
		zap.String("op", op),
		zap.Bool("fallback_saved", terr.FallbackSaved),
		zap.Error(err))
	return Ack{}, terr
}

// deliver writes data, connecting first if needed. A write on a reused
// connection that fails gets one immediate reconnect; nothing else is
// retried within a send.
func (s *Sender) deliver(ctx context.Context, data []byte) (Ack, string, error) {
	reconnected := false
	fresh := false
	if s.conn != nil && s.isDead() {
		s.logger.Debug("Connection was closed by the peer")
		s.teardown()
	}
	if s.conn == nil {
		reconnected = s.hadConn
		if err := s.connect(ctx); err != nil {
			return Ack{}, "connect", err
		}
		fresh = true
	}

	err := s.write(ctx, data)
	if err != nil && !fresh {
		s.logger.Info("Write on existing connection failed, reconnecting", zap.Error(err))
		s.teardown()
		if err := s.connect(ctx); err != nil {
			return Ack{}, "connect", err
		}
		reconnected = true
		err = s.write(ctx, data)
	}
	if err != nil {
		s.teardown()
		return Ack{}, "write", err
	}

	return Ack{Bytes: len(data), SentAt: time.Now().UTC(), Reconnected: reconnected}, "", nil
}

func (s *Sender) connect(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return err
	}

	s.conn = conn
	s.dead = make(chan struct{})
	s.hadConn = true
	go readPump(conn, s.dead, s.logger)

	s.logger.Info("Connected to collector", zap.String("url", s.url))
	return nil
}

func (s *Sender) write(ctx context.Context, data []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Sender) teardown() {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
}

func (s *Sender) isDead() bool {
	select {
	case <-s.dead:
		return true
	default:
		return false
	}
}

// readPump drains incoming frames so control frames (ping, close) are
// processed, and closes dead once the connection is gone.
func readPump(conn *websocket.Conn, dead chan<- struct{}, logger *zap.Logger) {
	defer close(dead)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				logger.Debug("Collector closed connection", zap.Int("code", closeErr.Code))
			}
			return
		}
		logger.Debug("Collector message", zap.Int("bytes", len(msg)))
	}
}
