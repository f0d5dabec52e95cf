package mediasync

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peervc/peervc/internal/signaling"
)

func TestStartOffset(t *testing.T) {
	now := time.UnixMilli(1_700_000_005_000)

	if got := StartOffset(1_700_000_000_000, now); got != 5*time.Second {
		t.Fatalf("offset = %v, want 5s", got)
	}
	// A sender clock ahead of ours must not seek backwards.
	if got := StartOffset(1_700_000_010_000, now); got != 0 {
		t.Fatalf("future timestamp offset = %v, want 0", got)
	}
	if got := StartOffset(0, now); got != 0 {
		t.Fatalf("missing timestamp offset = %v, want 0", got)
	}
}

func newTestView(start time.Time) (*View, *time.Time) {
	now := start
	v := NewView()
	v.now = func() time.Time { return now }
	return v, &now
}

func TestLoadCorrectsForTransitDelay(t *testing.T) {
	recv := time.UnixMilli(1_700_000_002_000)
	v, _ := newTestView(recv)

	// Sender was at 10s, stamped 2s before we received it.
	v.Load(Media{Kind: KindYouTube, VideoID: "abc"}, 10, 1_700_000_000_000)

	if got := v.Position(); math.Abs(got-12) > 0.001 {
		t.Fatalf("position = %v, want 12", got)
	}
	if !v.Playing() {
		t.Fatalf("youtube load should start playing")
	}
	media, ok := v.Current()
	if !ok || media.VideoID != "abc" {
		t.Fatalf("current = %+v, %v", media, ok)
	}
}

func TestPositionAdvancesWhilePlaying(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	v, now := newTestView(start)

	v.Load(Media{Kind: KindYouTube, VideoID: "abc"}, 0, start.UnixMilli())

	*now = start.Add(7 * time.Second)
	if got := v.Position(); math.Abs(got-7) > 0.001 {
		t.Fatalf("position = %v, want 7", got)
	}

	if err := v.Pause(7); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	*now = start.Add(time.Minute)
	if got := v.Position(); math.Abs(got-7) > 0.001 {
		t.Fatalf("paused position = %v, want 7", got)
	}
}

func TestPlayPauseWithoutMedia(t *testing.T) {
	v := NewView()
	if err := v.Play(0, 0); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("Play without media: err = %v", err)
	}
	if err := v.Pause(0); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("Pause without media: err = %v", err)
	}
}

func TestLoadReplacesVisibleMedia(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	v, _ := newTestView(start)

	v.Load(Media{Kind: KindYouTube, VideoID: "first"}, 0, start.UnixMilli())
	v.Load(Media{Kind: KindFile, URL: "/media/xyz", MediaType: "image/png"}, 0, start.UnixMilli())

	media, ok := v.Current()
	if !ok || media.Kind != KindFile || media.URL != "/media/xyz" {
		t.Fatalf("current = %+v", media)
	}
	// A still image does not play.
	if v.Playing() {
		t.Fatalf("image should not be playing")
	}
}

func TestApplyMapsBroadcastFrames(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	v, now := newTestView(start)

	pos := 30.0
	err := v.Apply(signaling.Event{
		Event:     signaling.EventSyncVideo,
		VideoID:   "abc",
		Timestamp: start.UnixMilli(),
		Position:  &pos,
	})
	if err != nil {
		t.Fatalf("Apply sync: %v", err)
	}
	if got := v.Position(); math.Abs(got-30) > 0.001 {
		t.Fatalf("position = %v, want 30", got)
	}

	*now = start.Add(time.Second)
	pausePos := 31.0
	if err := v.Apply(signaling.Event{Event: signaling.EventPauseVideo, Timestamp: now.UnixMilli(), Position: &pausePos}); err != nil {
		t.Fatalf("Apply pause: %v", err)
	}
	if v.Playing() {
		t.Fatalf("still playing after pause")
	}

	if err := v.Apply(signaling.Event{Event: signaling.EventChatMessage, Message: "hi"}); err == nil {
		t.Fatalf("non-media frame accepted")
	}
}
