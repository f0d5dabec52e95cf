package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	ErrCallInProgress = errors.New("client: a call is already in progress")
	ErrNoActiveCall   = errors.New("client: no active call")
)

// CallSession owns the PeerConnection for one call with one peer. Remote
// candidates arriving before the remote description (common with trickle
// ICE) are buffered and applied once the description lands.
type CallSession struct {
	peer string

	pc *webrtc.PeerConnection

	mu        sync.Mutex
	callID    string
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	closeOnce sync.Once
}

func (s *CallSession) Peer() string { return s.peer }

func (s *CallSession) CallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

func (s *CallSession) setCallID(id string) {
	s.mu.Lock()
	s.callID = id
	s.mu.Unlock()
}

// PeerConnection exposes the underlying connection for media track setup.
func (s *CallSession) PeerConnection() *webrtc.PeerConnection { return s.pc }

// OnRemoteTrack registers the sink for the peer's incoming media tracks.
func (s *CallSession) OnRemoteTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	s.pc.OnTrack(f)
}

// CreateOffer produces the local offer as a wire-ready JSON payload.
func (s *CallSession) CreateOffer() (json.RawMessage, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(offer)
}

// HandleRemoteOffer applies a remote offer and produces the answer payload.
func (s *CallSession) HandleRemoteOffer(payload json.RawMessage) (json.RawMessage, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := s.setRemoteDescription(desc); err != nil {
		return nil, err
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(answer)
}

// HandleRemoteAnswer applies the answer to a call we initiated.
func (s *CallSession) HandleRemoteAnswer(payload json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return s.setRemoteDescription(desc)
}

func (s *CallSession) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, cand := range pending {
		if err := s.pc.AddICECandidate(cand); err != nil {
			return fmt.Errorf("apply buffered candidate: %w", err)
		}
	}
	return nil
}

// HandleRemoteCandidate applies a trickled candidate, buffering it when the
// remote description has not arrived yet.
func (s *CallSession) HandleRemoteCandidate(payload json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &cand); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, cand)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.pc.AddICECandidate(cand)
}

// BufferedCandidates reports how many candidates await the remote
// description.
func (s *CallSession) BufferedCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close tears down the PeerConnection. Safe to call more than once.
func (s *CallSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pc.Close()
	})
	return err
}

// CallManager enforces the one-call-at-a-time rule on the client side.
// Starting a second call fails until the first is explicitly ended.
type CallManager struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	mu     sync.Mutex
	active *CallSession
}

func NewCallManager(api *webrtc.API, iceServers []webrtc.ICEServer) *CallManager {
	if api == nil {
		api = webrtc.NewAPI()
	}
	return &CallManager{api: api, iceServers: iceServers}
}

// Begin creates the session for a call with peer, attaching the given local
// tracks, and rejects a concurrent second call. Callers that failed to
// acquire a capture device pass no tracks and keep the call receive-only.
func (m *CallManager) Begin(peer string, tracks ...webrtc.TrackLocal) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w (with %s)", ErrCallInProgress, m.active.peer)
	}

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{ICEServers: m.iceServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add local track: %w", err)
		}
	}

	s := &CallSession{peer: peer, pc: pc}
	m.active = s
	return s, nil
}

// Active returns the in-progress session, if any.
func (m *CallManager) Active() (*CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// End closes the active session and frees the slot for a new call.
func (m *CallManager) End() error {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()

	if s == nil {
		return ErrNoActiveCall
	}
	return s.Close()
}
