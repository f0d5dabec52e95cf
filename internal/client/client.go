package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peervc/peervc/internal/signaling"
)

// Events holds the application callbacks for inbound frames. Nil callbacks
// are skipped. Callbacks run on the read loop goroutine, so they must not
// block.
type Events struct {
	OnRoster           func(users []string)
	OnOffer            func(ev signaling.Event)
	OnAnswer           func(ev signaling.Event)
	OnCandidate        func(ev signaling.Event)
	OnCallEnded        func(ev signaling.Event)
	OnChat             func(username, message string)
	OnMediaFrame       func(ev signaling.Event)
	OnRecipientOffline func(to string)
	OnRecipientBusy    func(to string)
	OnUserDisconnected func(username string)
	OnError            func(code, reason string)
	OnDisconnect       func(err error)
}

// Client is one signaling connection, joined under a username.
type Client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	username string
	events   Events

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	rosterMu sync.Mutex
	roster   []string
}

// Dial connects to the signaling endpoint and joins as username. When the
// server requires authentication, token is the session token from /login.
func Dial(ctx context.Context, serverURL, username, token string, events Events, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}

	c := &Client{
		log:      log,
		conn:     conn,
		username: username,
		events:   events,
		done:     make(chan struct{}),
	}

	if err := c.send(signaling.Event{Event: signaling.EventJoinUser, Username: username}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) Username() string { return c.username }

// Roster returns the most recent presence snapshot from the server.
func (c *Client) Roster() []string {
	c.rosterMu.Lock()
	defer c.rosterMu.Unlock()
	out := make([]string, len(c.roster))
	copy(out, c.roster)
	return out
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) send(ev signaling.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) SendOffer(to string, offer json.RawMessage) error {
	return c.send(signaling.Event{Event: signaling.EventOffer, To: to, Offer: offer})
}

func (c *Client) SendAnswer(to string, answer json.RawMessage) error {
	return c.send(signaling.Event{Event: signaling.EventAnswer, To: to, Answer: answer})
}

func (c *Client) SendCandidate(to string, candidate json.RawMessage) error {
	return c.send(signaling.Event{Event: signaling.EventICECandidate, To: to, Candidate: candidate})
}

func (c *Client) SendCallEnded() error {
	return c.send(signaling.Event{Event: signaling.EventCallEnded})
}

func (c *Client) SendChat(message string) error {
	return c.send(signaling.Event{Event: signaling.EventChatMessage, Message: message})
}

// SendVideoSync asks everyone else to load a YouTube video at position
// seconds. The local wall clock is stamped so receivers can correct for
// transit delay.
func (c *Client) SendVideoSync(videoID string, position float64) error {
	return c.send(signaling.Event{
		Event:     signaling.EventSyncVideo,
		VideoID:   videoID,
		Timestamp: time.Now().UnixMilli(),
		Position:  &position,
	})
}

func (c *Client) SendPlay(position float64) error {
	return c.send(signaling.Event{
		Event:     signaling.EventPlayVideo,
		Timestamp: time.Now().UnixMilli(),
		Position:  &position,
	})
}

func (c *Client) SendPause(position float64) error {
	return c.send(signaling.Event{
		Event:     signaling.EventPauseVideo,
		Timestamp: time.Now().UnixMilli(),
		Position:  &position,
	})
}

// AnnounceMedia broadcasts the URL of a blob previously uploaded over HTTP.
func (c *Client) AnnounceMedia(mediaURL, mediaType string) error {
	return c.send(signaling.Event{
		Event:     signaling.EventMediaUploaded,
		MediaURL:  mediaURL,
		MediaType: mediaType,
	})
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.events.OnDisconnect != nil {
				c.events.OnDisconnect(err)
			}
			return
		}

		var ev signaling.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("undecodable frame from server", "err", err)
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev signaling.Event) {
	switch ev.Event {
	case signaling.EventJoined:
		c.rosterMu.Lock()
		c.roster = ev.Users
		c.rosterMu.Unlock()
		if c.events.OnRoster != nil {
			c.events.OnRoster(ev.Users)
		}
	case signaling.EventOffer:
		if c.events.OnOffer != nil {
			c.events.OnOffer(ev)
		}
	case signaling.EventAnswer:
		if c.events.OnAnswer != nil {
			c.events.OnAnswer(ev)
		}
	case signaling.EventICECandidate:
		if c.events.OnCandidate != nil {
			c.events.OnCandidate(ev)
		}
	case signaling.EventCallEnded:
		if c.events.OnCallEnded != nil {
			c.events.OnCallEnded(ev)
		}
	case signaling.EventChatMessage:
		if c.events.OnChat != nil {
			c.events.OnChat(ev.Username, ev.Message)
		}
	case signaling.EventSyncVideo, signaling.EventPlayVideo, signaling.EventPauseVideo, signaling.EventMediaUploaded:
		if c.events.OnMediaFrame != nil {
			c.events.OnMediaFrame(ev)
		}
	case signaling.EventRecipientOffline:
		if c.events.OnRecipientOffline != nil {
			c.events.OnRecipientOffline(ev.To)
		}
	case signaling.EventRecipientBusy:
		if c.events.OnRecipientBusy != nil {
			c.events.OnRecipientBusy(ev.To)
		}
	case signaling.EventUserDisconnected:
		if c.events.OnUserDisconnected != nil {
			c.events.OnUserDisconnected(ev.Username)
		}
	case signaling.EventError:
		if c.events.OnError != nil {
			c.events.OnError(ev.Code, ev.Reason)
		}
	default:
		c.log.Debug("ignoring unknown server frame", "event", ev.Event)
	}
}
