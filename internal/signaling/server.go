package signaling

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peervc/peervc/internal/config"
	"github.com/peervc/peervc/internal/metrics"
	"github.com/peervc/peervc/internal/ratelimit"
)

// Server upgrades HTTP requests to WebSocket connections and runs the read
// loop for each client. Per-connection hardening: join timeout, read size
// limit, message rate limit, idle timeout with ping keepalive.
type Server struct {
	cfg       config.Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	hub       *Hub
	authorize Authorizer
	upgrader  websocket.Upgrader

	// newLimiter is swappable for deterministic tests.
	newLimiter func() *ratelimit.MessageLimiter
}

func NewServer(cfg config.Config, log *slog.Logger, m *metrics.Metrics, hub *Hub, authorizer Authorizer) *Server {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if authorizer == nil {
		authorizer = NoopAuthorizer{}
	}
	s := &Server{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		hub:       hub,
		authorize: authorizer,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.AllowedOrigins)
		},
	}
	s.newLimiter = func() *ratelimit.MessageLimiter {
		perSecond := int64(cfg.MaxSignalingMessagesPerSecond)
		return ratelimit.NewMessageLimiter(nil, perSecond, perSecond)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	boundUser, err := s.authorize.Authorize(r)
	if err != nil {
		s.metrics.Inc(metrics.AuthFailure)
		s.log.Info("websocket auth rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.cfg.MaxSignalingMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxSignalingMessageBytes)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	name, ok := s.awaitJoin(conn, boundUser)
	if !ok {
		return
	}

	sess := newSession(conn, s.cfg.SendQueueMessages, s.metrics)
	go sess.writePump(s.cfg.WSPingInterval)
	defer sess.Kick(websocket.CloseNormalClosure, "")

	s.hub.Join(name, sess)
	s.log.Info("client joined", "username", name, "remote", r.RemoteAddr)
	// Leave runs before the handler returns so the roster and call table
	// never reference a gone connection.
	defer s.hub.Leave(name, sess)

	s.readLoop(conn, sess, name)
}

// awaitJoin reads the first frame, which must be join-user, within the join
// timeout. When the authorizer bound a username, the join frame must match.
func (s *Server) awaitJoin(conn *websocket.Conn, boundUser string) (string, bool) {
	if s.cfg.JoinTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout))
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			s.metrics.Inc(metrics.IdleClosed)
			writeClose(conn, websocket.ClosePolicyViolation, "join timeout")
		}
		return "", false
	}

	ev, err := ParseEvent(data)
	if err != nil || ev.Event != EventJoinUser {
		s.metrics.Inc(metrics.BadMessage)
		writeClose(conn, websocket.ClosePolicyViolation, "expected join-user")
		return "", false
	}
	if boundUser != "" && ev.Username != boundUser {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "username does not match credentials")
		return "", false
	}

	return ev.Username, true
}

func (s *Server) readLoop(conn *websocket.Conn, sess *session, name string) {
	limiter := s.newLimiter()

	for {
		if s.cfg.WSIdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				s.metrics.Inc(metrics.IdleClosed)
				writeClose(conn, websocket.CloseGoingAway, "idle timeout")
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		if !limiter.Allow() {
			s.metrics.Inc(metrics.RateLimited)
			s.log.Info("rate limit exceeded", "username", name)
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		ev, err := ParseEvent(data)
		if err != nil {
			s.metrics.Inc(metrics.BadMessage)
			s.log.Debug("invalid frame", "username", name, "err", err)
			writeClose(conn, websocket.CloseUnsupportedData, "invalid message")
			return
		}

		switch ev.Event {
		case EventJoinUser:
			writeClose(conn, websocket.ClosePolicyViolation, "already joined")
			return
		case EventOffer, EventAnswer, EventICECandidate:
			s.hub.Forward(sess, name, ev)
		case EventCallEnded:
			s.hub.EndCall(name)
		case EventChatMessage:
			s.hub.Chat(sess, name, ev)
		case EventSyncVideo, EventPlayVideo, EventPauseVideo:
			s.hub.MediaSync(name, ev)
		case EventMediaUploaded:
			s.hub.MediaUploaded(name, ev)
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// originAllowed implements the browser origin policy: requests without an
// Origin header (non-browser clients) pass, "*" allows everything, an
// explicit list matches exactly, and an empty list falls back to same-host.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}

	normalized := strings.TrimSuffix(origin, "/")
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, normalized) {
			return true
		}
	}
	return false
}
