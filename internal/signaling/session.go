package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peervc/peervc/internal/metrics"
)

const writeWait = 5 * time.Second

// Endpoint is the hub's view of one connected client.
type Endpoint interface {
	// Send enqueues a frame without blocking. It reports false when the
	// frame was dropped because the client is too slow or already closed.
	Send(payload []byte) bool
	// Kick closes the connection with a WebSocket close frame.
	Kick(closeCode int, reason string)
}

// session wraps one WebSocket connection. All data frames go through the
// send channel and are written by a single writePump goroutine, which keeps
// per-recipient delivery in enqueue order.
type session struct {
	conn    *websocket.Conn
	metrics *metrics.Metrics

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, queueLen int, m *metrics.Metrics) *session {
	if queueLen <= 0 {
		queueLen = 1
	}
	return &session{
		conn:    conn,
		metrics: m,
		send:    make(chan []byte, queueLen),
		done:    make(chan struct{}),
	}
}

func (s *session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		s.metrics.Inc(metrics.SendQueueDrop)
		return false
	}
}

func (s *session) Kick(closeCode int, reason string) {
	s.closeOnce.Do(func() {
		// WriteControl is safe concurrently with writePump's data writes.
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCode, reason),
			time.Now().Add(writeWait),
		)
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump drains the send queue and keeps the connection alive with pings.
// It exits when the session is kicked or a write fails.
func (s *session) writePump(pingInterval time.Duration) {
	var ticker *time.Ticker
	var ping <-chan time.Time
	if pingInterval > 0 {
		ticker = time.NewTicker(pingInterval)
		ping = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Kick(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ping:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Kick(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}
