package signaling

import (
	"strings"
	"testing"
)

func TestParseEventJoin(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"join-user","username":"alice"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Event != EventJoinUser || ev.Username != "alice" {
		t.Fatalf("parsed = %+v", ev)
	}
}

func TestParseEventRejectsUnknownFields(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":"join-user","username":"alice","extra":1}`))
	if err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestParseEventRejectsTrailingData(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":"join-user","username":"alice"}{"event":"x"}`))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("trailing data accepted: %v", err)
	}
}

func TestParseEventRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"join without username", `{"event":"join-user"}`},
		{"offer without to", `{"event":"offer","offer":{"type":"offer","sdp":"x"}}`},
		{"offer without payload", `{"event":"offer","to":"bob"}`},
		{"answer without payload", `{"event":"answer","to":"bob"}`},
		{"candidate without payload", `{"event":"icecandidate","to":"bob"}`},
		{"chat without message", `{"event":"chat-message"}`},
		{"sync without videoId", `{"event":"sync-youtube-video","timestamp":1700000000000}`},
		{"sync without timestamp", `{"event":"sync-youtube-video","videoId":"abc"}`},
		{"play without timestamp", `{"event":"play-video"}`},
		{"media-uploaded without url", `{"event":"media-uploaded","mediaType":"image/png"}`},
		{"unknown event", `{"event":"shutdown-server"}`},
		{"empty object", `{}`},
	}
	for _, tc := range cases {
		if _, err := ParseEvent([]byte(tc.in)); err == nil {
			t.Errorf("%s: accepted %s", tc.name, tc.in)
		}
	}
}

func TestParseEventRejectsServerOnlyEvents(t *testing.T) {
	for _, in := range []string{
		`{"event":"joined","users":["alice"]}`,
		`{"event":"user-disconnected","username":"alice"}`,
		`{"event":"recipient-offline","to":"bob"}`,
		`{"event":"recipient-busy","to":"bob"}`,
		`{"event":"error","code":"x","reason":"y"}`,
	} {
		if _, err := ParseEvent([]byte(in)); err == nil {
			t.Errorf("server-only event accepted from client: %s", in)
		}
	}
}

func TestParseEventKeepsNegotiationPayloadRaw(t *testing.T) {
	raw := `{"sdp":"v=0\r\n","type":"offer","weird":{"nested":[1,2,3]}}`
	ev, err := ParseEvent([]byte(`{"event":"offer","to":"bob","offer":` + raw + `}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if string(ev.Offer) != raw {
		t.Fatalf("offer payload altered: %s", ev.Offer)
	}
}
