// Package mediasync keeps a local media view loosely aligned with what a
// remote participant is watching. Sync is best effort: frames carry the
// sender's wall clock, receivers correct for transit delay when seeking,
// and anyone offline during a broadcast simply never sees it.
package mediasync

import (
	"errors"
	"sync"
	"time"

	"github.com/peervc/peervc/internal/signaling"
)

var ErrNoMedia = errors.New("mediasync: no media loaded")

type Kind string

const (
	KindYouTube Kind = "youtube"
	KindFile    Kind = "file"
)

// Media identifies what is currently on screen: a YouTube video by ID or an
// uploaded blob by URL.
type Media struct {
	Kind      Kind
	VideoID   string
	URL       string
	MediaType string
}

// StartOffset estimates how far playback advanced between the sender
// stamping sentAtMillis (Unix milliseconds, sender's clock) and now.
// Skewed clocks can make the difference negative; that is clamped to zero
// rather than seeking backwards.
func StartOffset(sentAtMillis int64, now time.Time) time.Duration {
	if sentAtMillis <= 0 {
		return 0
	}
	sent := time.UnixMilli(sentAtMillis)
	offset := now.Sub(sent)
	if offset < 0 {
		return 0
	}
	return offset
}

// View models the single shared media element: at most one piece of media
// is visible, and loading new media replaces the previous one.
type View struct {
	mu sync.Mutex

	current   *Media
	playing   bool
	position  float64 // seconds, as of lastUpdate
	lastUpdate time.Time

	now func() time.Time
}

func NewView() *View {
	return &View{now: time.Now}
}

// Load replaces the visible media. For playable media, position is where
// the sender was, corrected by the transit offset.
func (v *View) Load(m Media, position float64, sentAtMillis int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	v.current = &m
	v.position = position + StartOffset(sentAtMillis, now).Seconds()
	v.playing = m.Kind == KindYouTube || isPlayable(m.MediaType)
	v.lastUpdate = now
}

func (v *View) Play(position float64, sentAtMillis int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil {
		return ErrNoMedia
	}
	now := v.now()
	v.position = position + StartOffset(sentAtMillis, now).Seconds()
	v.playing = true
	v.lastUpdate = now
	return nil
}

func (v *View) Pause(position float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil {
		return ErrNoMedia
	}
	v.position = position
	v.playing = false
	v.lastUpdate = v.now()
	return nil
}

// Position returns the current playback position, advancing in real time
// while playing.
func (v *View) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil {
		return 0
	}
	if !v.playing {
		return v.position
	}
	return v.position + v.now().Sub(v.lastUpdate).Seconds()
}

func (v *View) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Current returns the visible media, if any.
func (v *View) Current() (Media, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return Media{}, false
	}
	return *v.current, true
}

func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = nil
	v.playing = false
	v.position = 0
}

// Apply maps an inbound broadcast frame onto the view.
func (v *View) Apply(ev signaling.Event) error {
	switch ev.Event {
	case signaling.EventSyncVideo:
		v.Load(Media{Kind: KindYouTube, VideoID: ev.VideoID}, position(ev), ev.Timestamp)
		return nil
	case signaling.EventMediaUploaded:
		v.Load(Media{Kind: KindFile, URL: ev.MediaURL, MediaType: ev.MediaType}, 0, ev.Timestamp)
		return nil
	case signaling.EventPlayVideo:
		return v.Play(position(ev), ev.Timestamp)
	case signaling.EventPauseVideo:
		return v.Pause(position(ev))
	default:
		return errors.New("mediasync: not a media frame")
	}
}

func position(ev signaling.Event) float64 {
	if ev.Position == nil {
		return 0
	}
	return *ev.Position
}

func isPlayable(mediaType string) bool {
	return len(mediaType) >= 6 && (mediaType[:6] == "video/" || mediaType[:6] == "audio/")
}
