package signaling

import (
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/peervc/peervc/internal/calls"
	"github.com/peervc/peervc/internal/metrics"
	"github.com/peervc/peervc/internal/presence"
)

// Hub routes frames between connected clients. It owns the presence
// directory and the call table; connection lifecycle (upgrade, read loop,
// limits) lives in Server.
//
// All sends are fire-and-forget: a slow client drops frames rather than
// stalling the sender.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	directory *presence.Directory
	calls     *calls.Table

	maxChatChars int
	now          func() time.Time
}

func NewHub(log *slog.Logger, m *metrics.Metrics, maxChatChars int) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Hub{
		log:          log,
		metrics:      m,
		directory:    presence.NewDirectory(),
		calls:        calls.NewTable(),
		maxChatChars: maxChatChars,
		now:          time.Now,
	}
}

// Directory exposes the presence directory for read-only HTTP endpoints.
func (h *Hub) Directory() *presence.Directory { return h.directory }

// Join registers name → ep and broadcasts the updated roster to everyone.
// If the name was already connected the previous connection is kicked and
// any call it was in is torn down (last writer wins).
func (h *Hub) Join(name string, ep Endpoint) {
	prev, replaced := h.directory.Join(name, ep)
	if replaced {
		h.metrics.Inc(metrics.PresenceOverwrite)
		h.log.Info("presence name taken over", "username", name)
		h.endCallFor(name)
		if kicker, ok := prev.(Endpoint); ok {
			kicker.Kick(websocket.ClosePolicyViolation, "username connected elsewhere")
		}
	}
	h.metrics.Inc(metrics.PresenceJoin)
	h.broadcastRoster()
}

// Leave removes name if ep still owns it, tears down its call, and
// broadcasts the updated roster. Called synchronously from the read loop
// before it returns, so the roster never shows a gone client.
func (h *Hub) Leave(name string, ep Endpoint) {
	if !h.directory.Remove(name, ep) {
		// A newer connection took the name over; nothing to clean up.
		return
	}
	h.metrics.Inc(metrics.PresenceRemove)
	h.endCallFor(name)

	h.broadcastExcept(name, encodeEvent(Event{
		Event:    EventUserDisconnected,
		Username: name,
	}))
	h.broadcastRoster()
}

// Forward relays an offer, answer or candidate to ev.To verbatim. From is
// always stamped server-side so a client cannot impersonate another user.
func (h *Hub) Forward(sender Endpoint, from string, ev Event) {
	ev.From = from

	if ev.Event == EventOffer {
		call, ok := h.beginOrReuseCall(sender, from, ev.To)
		if !ok {
			return
		}
		ev.CallID = call.ID.String()
	} else if call, ok := h.calls.Lookup(from); ok && call.Other(from) == ev.To {
		ev.CallID = call.ID.String()
	}

	target, ok := h.directory.Resolve(ev.To)
	if !ok {
		h.recipientOffline(sender, from, ev.To)
		if ev.Event == EventOffer {
			// The call was just opened against a name that vanished in
			// between; release both parties.
			h.calls.End(from)
		}
		return
	}

	if target.Send(encodeEvent(ev)) {
		h.metrics.Inc(metrics.RelayForwarded)
	}
}

// beginOrReuseCall resolves which call an offer belongs to. An offer to the
// current peer is renegotiation; an offer while either side is in another
// call is rejected instead of silently replacing the session.
func (h *Hub) beginOrReuseCall(sender Endpoint, from, to string) (*calls.Call, bool) {
	if existing, ok := h.calls.Lookup(from); ok {
		if existing.Other(from) == to {
			return existing, true
		}
		h.metrics.Inc(metrics.BadMessage)
		sender.Send(encodeEvent(Event{
			Event:  EventError,
			Code:   "already-in-call",
			Reason: "end the current call before starting another",
		}))
		return nil, false
	}

	call, err := h.calls.Begin(from, to, h.now())
	switch {
	case err == nil:
		h.metrics.Inc(metrics.CallStarted)
		h.log.Info("call started", "call_id", call.ID, "caller", from, "callee", to)
		return call, true
	case errors.Is(err, calls.ErrCalleeBusy):
		sender.Send(encodeEvent(Event{
			Event: EventRecipientBusy,
			To:    to,
		}))
		return nil, false
	default:
		h.metrics.Inc(metrics.BadMessage)
		sender.Send(encodeEvent(Event{
			Event:  EventError,
			Code:   "invalid-call",
			Reason: err.Error(),
		}))
		return nil, false
	}
}

// EndCall tears down the sender's active call and notifies both parties.
// Ending when no call is active is a no-op.
func (h *Hub) EndCall(from string) {
	call, ok := h.calls.End(from)
	if !ok {
		return
	}
	h.fanOutCallEnded(call, from)
}

// endCallFor is the disconnect path: the leaving user's frame is dropped
// anyway, but the surviving party still needs the teardown signal.
func (h *Hub) endCallFor(name string) {
	call, ok := h.calls.End(name)
	if !ok {
		return
	}
	h.fanOutCallEnded(call, name)
}

func (h *Hub) fanOutCallEnded(call *calls.Call, endedBy string) {
	h.metrics.Inc(metrics.CallEnded)
	h.log.Info("call ended", "call_id", call.ID, "ended_by", endedBy,
		"duration", h.now().Sub(call.StartedAt))

	// Both parties get the teardown signal, including the one who asked for
	// it, so client state converges on a single event.
	for _, user := range []string{call.Caller, call.Callee} {
		ep, ok := h.directory.Resolve(user)
		if !ok {
			continue
		}
		ep.Send(encodeEvent(Event{
			Event:  EventCallEnded,
			CallID: call.ID.String(),
			From:   endedBy,
			To:     user,
		}))
	}
}

// Chat broadcasts a chat message to everyone except the sender.
func (h *Hub) Chat(sender Endpoint, from string, ev Event) {
	if h.maxChatChars > 0 && utf8.RuneCountInString(ev.Message) > h.maxChatChars {
		h.metrics.Inc(metrics.BadMessage)
		sender.Send(encodeEvent(Event{
			Event:  EventError,
			Code:   "chat-too-long",
			Reason: "chat message exceeds the maximum length",
		}))
		return
	}
	h.metrics.Inc(metrics.BroadcastChat)
	h.broadcastExcept(from, encodeEvent(Event{
		Event:    EventChatMessage,
		Username: from,
		Message:  ev.Message,
	}))
}

// MediaSync broadcasts a load/play/pause frame to everyone except the
// sender. The sender's wall-clock timestamp is forwarded untouched;
// receivers use it for best-effort offset correction. Clients that were
// offline during the broadcast never see it.
func (h *Hub) MediaSync(from string, ev Event) {
	h.metrics.Inc(metrics.BroadcastMediaSync)
	ev.From = from
	ev.To = ""
	h.broadcastExcept(from, encodeEvent(ev))
}

// MediaUploaded announces an uploaded media blob to everyone except the
// uploader.
func (h *Hub) MediaUploaded(from string, ev Event) {
	h.metrics.Inc(metrics.MediaUpload)
	h.broadcastExcept(from, encodeEvent(Event{
		Event:     EventMediaUploaded,
		From:      from,
		MediaURL:  ev.MediaURL,
		MediaType: ev.MediaType,
	}))
}

func (h *Hub) broadcastRoster() {
	h.broadcastAll(encodeEvent(Event{
		Event: EventJoined,
		Users: h.directory.Snapshot(),
	}))
}

func (h *Hub) broadcastAll(payload []byte) {
	for _, ep := range h.directory.Entries() {
		ep.Send(payload)
	}
}

func (h *Hub) broadcastExcept(name string, payload []byte) {
	for entryName, ep := range h.directory.Entries() {
		if entryName == name {
			continue
		}
		ep.Send(payload)
	}
}

func (h *Hub) recipientOffline(sender Endpoint, from, to string) {
	h.metrics.Inc(metrics.RelayRecipientOffline)
	h.log.Debug("dropping frame for offline recipient", "from", from, "to", to)
	sender.Send(encodeEvent(Event{
		Event: EventRecipientOffline,
		To:    to,
	}))
}
