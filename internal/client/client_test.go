package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peervc/peervc/internal/config"
	"github.com/peervc/peervc/internal/metrics"
	"github.com/peervc/peervc/internal/signaling"
)

func startSignaling(t *testing.T) string {
	t.Helper()
	cfg := config.Config{
		JoinTimeout:                   2 * time.Second,
		WSIdleTimeout:                 10 * time.Second,
		WSPingInterval:                3 * time.Second,
		MaxSignalingMessageBytes:      64 * 1024,
		MaxSignalingMessagesPerSecond: 100,
		SendQueueMessages:             16,
		MaxChatMessageChars:           200,
	}
	m := metrics.New()
	hub := signaling.NewHub(nil, m, cfg.MaxChatMessageChars)
	srv := httptest.NewServer(signaling.NewServer(cfg, nil, m, hub, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitEvent[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestDialJoinAndChat(t *testing.T) {
	url := startSignaling(t)
	ctx := context.Background()

	aliceRoster := make(chan []string, 8)
	alice, err := Dial(ctx, url, "alice", "", Events{
		OnRoster: func(users []string) { aliceRoster <- users },
	}, nil)
	if err != nil {
		t.Fatalf("dial alice: %v", err)
	}
	defer alice.Close()

	if roster := waitEvent(t, aliceRoster, "initial roster"); len(roster) != 1 || roster[0] != "alice" {
		t.Fatalf("roster = %v", roster)
	}

	bobChat := make(chan string, 8)
	bob, err := Dial(ctx, url, "bob", "", Events{
		OnChat: func(username, message string) { bobChat <- username + ": " + message },
	}, nil)
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	defer bob.Close()

	if roster := waitEvent(t, aliceRoster, "updated roster"); len(roster) != 2 {
		t.Fatalf("roster after bob joined = %v", roster)
	}
	if mirror := alice.Roster(); len(mirror) != 2 || mirror[0] != "alice" || mirror[1] != "bob" {
		t.Fatalf("Roster() = %v", mirror)
	}

	if err := alice.SendChat("hello bob"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if got := waitEvent(t, bobChat, "chat"); got != "alice: hello bob" {
		t.Fatalf("chat = %q", got)
	}
}

func TestNegotiationThroughRelay(t *testing.T) {
	url := startSignaling(t)
	ctx := context.Background()

	bobOffers := make(chan signaling.Event, 8)
	bob, err := Dial(ctx, url, "bob", "", Events{
		OnOffer: func(ev signaling.Event) { bobOffers <- ev },
	}, nil)
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	defer bob.Close()

	aliceAnswers := make(chan signaling.Event, 8)
	offline := make(chan string, 8)
	alice, err := Dial(ctx, url, "alice", "", Events{
		OnAnswer:           func(ev signaling.Event) { aliceAnswers <- ev },
		OnRecipientOffline: func(to string) { offline <- to },
	}, nil)
	if err != nil {
		t.Fatalf("dial alice: %v", err)
	}
	defer alice.Close()

	raw := json.RawMessage(`{"type":"offer","sdp":"v=0 fixture"}`)
	if err := alice.SendOffer("bob", raw); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	offer := waitEvent(t, bobOffers, "offer")
	if offer.From != "alice" || string(offer.Offer) != string(raw) {
		t.Fatalf("offer = %+v", offer)
	}

	if err := bob.SendAnswer("alice", json.RawMessage(`{"type":"answer","sdp":"v=0 reply"}`)); err != nil {
		t.Fatalf("SendAnswer: %v", err)
	}
	answer := waitEvent(t, aliceAnswers, "answer")
	if answer.From != "bob" || answer.CallID != offer.CallID {
		t.Fatalf("answer = %+v", answer)
	}

	// Offering to a gone user reports recipient-offline instead of silence.
	if err := alice.SendCallEnded(); err != nil {
		t.Fatalf("SendCallEnded: %v", err)
	}
	if err := alice.SendOffer("ghost", raw); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	if to := waitEvent(t, offline, "recipient-offline"); to != "ghost" {
		t.Fatalf("recipient-offline = %q", to)
	}
}
