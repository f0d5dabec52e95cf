package metrics

import "sync"

// Event counter names used across the relay. Kept as plain strings so new
// counters can be added without touching this package.
const (
	PresenceJoin      = "presence_join"
	PresenceOverwrite = "presence_overwrite"
	PresenceRemove    = "presence_remove"

	RelayForwarded        = "relay_forwarded"
	RelayRecipientOffline = "relay_recipient_offline"

	BroadcastChat      = "broadcast_chat"
	BroadcastMediaSync = "broadcast_media_sync"

	CallStarted = "call_started"
	CallEnded   = "call_ended"

	SendQueueDrop = "send_queue_drop"
	RateLimited   = "rate_limited"
	AuthFailure   = "auth_failure"
	IdleClosed    = "idle_closed"
	BadMessage    = "bad_message"

	MediaUpload         = "media_upload"
	MediaUploadRejected = "media_upload_rejected"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// A production deployment is expected to scrape these through the Prometheus
// handler; the registry itself stays in-process so relay paths can count
// events without any backend dependency.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
