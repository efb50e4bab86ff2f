package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/trcimport/pkg/streaming"
)

const (
	outboxSize   = 1024
	maxReconnect = 5
	maxBackoff   = 10 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errClosed = errors.New("websocket stream closed")

// link is one physical connection. stop is closed when the link is lost so
// its pump exits without consuming messages meant for the next link.
type link struct {
	conn *ws.Conn
	stop chan struct{}
}

// queued is an outbox entry. seq orders it against the journal.
type queued struct {
	seq       uint64
	data      []byte
	journaled bool
}

// stream carries the messages of an import over a WebSocket. Everything
// sent while an import is open is journaled; after a reconnect the journal
// is replayed so the server rebuilds the scene from the start. Messages are
// enqueued from a single goroutine.
type stream struct {
	logger *slog.Logger
	target string

	mu          sync.Mutex
	current     *link
	journal     [][]byte // nil while no import is open
	journalLast uint64   // seq of the newest journal entry
	seq         uint64
	waiters     map[string]chan struct{}
	closed      bool

	// Journaled entries up to this seq were resent by a replay; the pump
	// skips them when they come out of the outbox.
	replayed atomic.Uint64

	outbox   chan queued
	done     chan struct{}
	shutdown sync.Once
}

func newStream(logger *slog.Logger) *stream {
	return &stream{
		logger:  logger,
		waiters: make(map[string]chan struct{}),
		outbox:  make(chan queued, outboxSize),
		done:    make(chan struct{}),
	}
}

// open dials the server and starts the link goroutines.
func (s *stream) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	s.target = u.String()

	l, err := s.dial()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	s.run(l)
	return nil
}

func (s *stream) dial() (*link, error) {
	conn, _, err := ws.DefaultDialer.Dial(s.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &link{conn: conn, stop: make(chan struct{})}, nil
}

func (s *stream) run(l *link) {
	go s.pump(l)
	go s.listen(l)
}

// pump is the only writer of a link.
func (s *stream) pump(l *link) {
	for {
		select {
		case <-s.done:
			return
		case <-l.stop:
			return
		case q := <-s.outbox:
			if q.journaled && q.seq <= s.replayed.Load() {
				continue
			}
			if err := writeText(l.conn, q.data); err != nil {
				s.lost(l, err)
				return
			}
		}
	}
}

// listen resolves ack waiters until the link fails.
func (s *stream) listen(l *link) {
	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			s.lost(l, err)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			s.logger.Debug("Ignoring non-ack message", "raw", string(message))
			continue
		}

		s.mu.Lock()
		ch := s.waiters[ack.For]
		delete(s.waiters, ack.For)
		s.mu.Unlock()
		if ch != nil {
			close(ch)
		}
	}
}

// lost retires a failed link. Both goroutines of a link report here; only
// the first report for the current link triggers a reconnect.
func (s *stream) lost(l *link, err error) {
	s.mu.Lock()
	if s.closed || s.current != l {
		s.mu.Unlock()
		return
	}
	s.current = nil
	close(l.stop)
	s.mu.Unlock()

	_ = l.conn.Close()
	s.logger.Warn("WebSocket link lost", "error", err)
	go s.reconnect()
}

func (s *stream) reconnect() {
	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-s.done:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		l, err := s.dial()
		if err != nil {
			s.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		s.mu.Lock()
		replay := append([][]byte(nil), s.journal...)
		through := s.journalLast
		s.mu.Unlock()

		if err := replayJournal(l.conn, replay); err != nil {
			s.logger.Warn("Journal replay failed", "attempt", attempt, "messages", len(replay), "error", err)
			_ = l.conn.Close()
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = l.conn.Close()
			return
		}
		s.current = l
		s.mu.Unlock()
		if len(replay) > 0 {
			s.replayed.Store(through)
		}

		s.logger.Info("WebSocket reconnected", "attempt", attempt, "replayed", len(replay))
		s.run(l)
		return
	}
	s.logger.Error("Giving up on WebSocket reconnect", "attempts", maxReconnect)
}

// enqueue hands data to the pump, journaling it when an import is open.
// A full outbox blocks for up to writeWait rather than dropping data.
func (s *stream) enqueue(data []byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}

	s.mu.Lock()
	s.seq++
	q := queued{seq: s.seq, data: data, journaled: s.journal != nil}
	if q.journaled {
		s.journal = append(s.journal, data)
		s.journalLast = q.seq
	}
	s.mu.Unlock()

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case s.outbox <- q:
		return nil
	case <-s.done:
		return errClosed
	case <-timer.C:
		return fmt.Errorf("websocket outbox full for %s", writeWait)
	}
}

// request sends data and waits for the server to ack ackFor.
func (s *stream) request(data []byte, ackFor string, timeout time.Duration) error {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiters[ackFor] = ch
	s.mu.Unlock()

	forget := func() {
		s.mu.Lock()
		if s.waiters[ackFor] == ch {
			delete(s.waiters, ackFor)
		}
		s.mu.Unlock()
	}

	if err := s.enqueue(data); err != nil {
		forget()
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		forget()
		return fmt.Errorf("no ack for %q within %s", ackFor, timeout)
	case <-s.done:
		return fmt.Errorf("stream closed while waiting for ack of %q", ackFor)
	}
}

// beginImport starts journaling with the start message at its head.
func (s *stream) beginImport(start []byte) error {
	s.mu.Lock()
	s.journal = [][]byte{}
	s.mu.Unlock()
	return s.request(start, streaming.TypeStartImport, ackTimeout)
}

// finishImport sends the end message and stops journaling.
func (s *stream) finishImport(end []byte) error {
	err := s.request(end, streaming.TypeEndImport, ackTimeout)
	s.mu.Lock()
	s.journal = nil
	s.mu.Unlock()
	return err
}

func (s *stream) close() error {
	s.shutdown.Do(func() { close(s.done) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.current
	s.current = nil
	s.mu.Unlock()

	if l == nil {
		return nil
	}
	_ = l.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return l.conn.Close()
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func replayJournal(conn *ws.Conn, journal [][]byte) error {
	for _, data := range journal {
		if err := writeText(conn, data); err != nil {
			return err
		}
	}
	return nil
}
