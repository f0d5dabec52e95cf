package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// EventType names match the wire protocol spoken by browser clients.
type EventType string

const (
	// Client → server.
	EventJoinUser EventType = "join-user"

	// Client → server, relayed to a single recipient.
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "icecandidate"
	EventCallEnded    EventType = "call-ended"

	// Client → server, broadcast to everyone else.
	EventChatMessage   EventType = "chat-message"
	EventSyncVideo     EventType = "sync-youtube-video"
	EventPlayVideo     EventType = "play-video"
	EventPauseVideo    EventType = "pause-video"
	EventMediaUploaded EventType = "media-uploaded"

	// Server → client only.
	EventJoined           EventType = "joined"
	EventUserDisconnected EventType = "user-disconnected"
	EventRecipientOffline EventType = "recipient-offline"
	EventRecipientBusy    EventType = "recipient-busy"
	EventError            EventType = "error"
)

// Event is the single JSON envelope used for every frame in both directions.
// Negotiation payloads (offer/answer/candidate) are kept as raw JSON so the
// relay forwards them byte-for-byte without interpreting SDP or candidate
// structure.
type Event struct {
	Event EventType `json:"event"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// CallID tags every call-scoped server frame so clients can correlate
	// teardown with the session it belongs to.
	CallID string `json:"callId,omitempty"`

	Username string   `json:"username,omitempty"`
	Users    []string `json:"users,omitempty"`
	Message  string   `json:"message,omitempty"`

	// Shared-media sync. Timestamp is the sender's wall clock in Unix
	// milliseconds at send time; Position is seconds into the media.
	VideoID   string   `json:"videoId,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Position  *float64 `json:"position,omitempty"`

	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`

	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ParseEvent decodes one inbound frame strictly: unknown fields and trailing
// data are rejected, and per-event required fields are enforced.
func ParseEvent(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return Event{}, err
	}
	if err := ev.validateInbound(); err != nil {
		return Event{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Event{}, fmt.Errorf("unexpected trailing data")
	}
	return ev, nil
}

func (e Event) validateInbound() error {
	switch e.Event {
	case EventJoinUser:
		if e.Username == "" {
			return fmt.Errorf("join-user missing username")
		}
	case EventOffer:
		if e.To == "" {
			return fmt.Errorf("offer missing to")
		}
		if len(e.Offer) == 0 {
			return fmt.Errorf("offer missing offer payload")
		}
	case EventAnswer:
		if e.To == "" {
			return fmt.Errorf("answer missing to")
		}
		if len(e.Answer) == 0 {
			return fmt.Errorf("answer missing answer payload")
		}
	case EventICECandidate:
		if e.To == "" {
			return fmt.Errorf("icecandidate missing to")
		}
		if len(e.Candidate) == 0 {
			return fmt.Errorf("icecandidate missing candidate payload")
		}
	case EventCallEnded:
		// To is optional: the active call is looked up by sender.
	case EventChatMessage:
		if e.Message == "" {
			return fmt.Errorf("chat-message missing message")
		}
	case EventSyncVideo:
		if e.VideoID == "" {
			return fmt.Errorf("sync-youtube-video missing videoId")
		}
		if e.Timestamp <= 0 {
			return fmt.Errorf("sync-youtube-video missing timestamp")
		}
	case EventPlayVideo, EventPauseVideo:
		if e.Timestamp <= 0 {
			return fmt.Errorf("%s missing timestamp", e.Event)
		}
	case EventMediaUploaded:
		if e.MediaURL == "" {
			return fmt.Errorf("media-uploaded missing mediaUrl")
		}
		if e.MediaType == "" {
			return fmt.Errorf("media-uploaded missing mediaType")
		}
	case EventJoined, EventUserDisconnected, EventRecipientOffline, EventRecipientBusy, EventError:
		return fmt.Errorf("event %q is server-sent only", e.Event)
	default:
		return fmt.Errorf("unsupported event %q", e.Event)
	}
	return nil
}

func encodeEvent(ev Event) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		// Event contains only marshallable fields; this is unreachable with
		// inputs that passed ParseEvent.
		panic(fmt.Sprintf("signaling: encode event: %v", err))
	}
	return payload
}
