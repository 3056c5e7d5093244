package core

import "testing"

func TestReplayOption_ValidStringAndParse(t *testing.T) {
	if !ReplayNewEvents.Valid() || !ReplayAllEvents.Valid() {
		t.Fatalf("expected symbolic replay options to be valid")
	}
	if ReplayOption(42).Valid() {
		t.Fatalf("expected concrete replay id to be invalid as an option")
	}
	if ReplayNewEvents.String() != "NEW_EVENTS" || ReplayAllEvents.String() != "ALL_EVENTS" {
		t.Fatalf("unexpected option names %q %q", ReplayNewEvents, ReplayAllEvents)
	}

	cases := map[string]ReplayOption{
		"NEW_EVENTS": ReplayNewEvents,
		" all ":      ReplayAllEvents,
		"-1":         ReplayNewEvents,
		"-2":         ReplayAllEvents,
	}
	for input, expected := range cases {
		got, err := ParseReplayOption(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != expected {
			t.Fatalf("parse %q: expected %v, got %v", input, expected, got)
		}
	}
	if _, err := ParseReplayOption("latest"); err == nil {
		t.Fatalf("expected unknown replay option error")
	}
}

func TestMessage_ExtCreatesOnDemand(t *testing.T) {
	message := Message{"channel": ChannelSubscribe, "subscription": " /topic/Foo "}
	if message.Channel() != ChannelSubscribe {
		t.Fatalf("unexpected channel %q", message.Channel())
	}
	if message.Subscription() != "/topic/Foo" {
		t.Fatalf("unexpected subscription %q", message.Subscription())
	}
	if message.Ext(false) != nil {
		t.Fatalf("expected no ext without create")
	}
	ext := message.Ext(true)
	ext["replay"] = map[string]any{"/topic/Foo": int64(7)}
	if _, ok := message.Ext(false)["replay"]; !ok {
		t.Fatalf("expected ext to be stored on the message")
	}
}

func TestMessage_CloneCopiesNestedMaps(t *testing.T) {
	original := Message{
		"channel": "/topic/Foo",
		"data":    map[string]any{"event": map[string]any{"replayId": 1}},
	}
	clone := original.Clone()
	clone.Data()["event"].(map[string]any)["replayId"] = 2

	if got := original.Data()["event"].(map[string]any)["replayId"]; got != 1 {
		t.Fatalf("expected original to be untouched, got %v", got)
	}
	var empty Message
	if empty.Clone() != nil {
		t.Fatalf("expected nil clone of nil message")
	}
}

func TestCredential_Authorization(t *testing.T) {
	if (Credential{}).Authorized() {
		t.Fatalf("expected zero credential to be unauthorized")
	}
	credential := Credential{TokenType: "Bearer", AccessToken: "abc"}
	if !credential.Authorized() {
		t.Fatalf("expected credential to be authorized")
	}
	if got := credential.AuthorizationHeader(); got != "Bearer abc" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

func TestParseStoragePolicy(t *testing.T) {
	policy, err := ParseStoragePolicy("")
	if err != nil || policy != StoragePolicyAutomatic {
		t.Fatalf("expected automatic default, got %q (%v)", policy, err)
	}
	policy, err = ParseStoragePolicy(" MANUAL ")
	if err != nil || policy != StoragePolicyManual {
		t.Fatalf("expected manual, got %q (%v)", policy, err)
	}
	if _, err := ParseStoragePolicy("eventually"); err == nil {
		t.Fatalf("expected invalid storage policy error")
	}
}

func TestReplayMarker_IsZero(t *testing.T) {
	if !(ReplayMarker{}).IsZero() {
		t.Fatalf("expected zero marker")
	}
	if (ReplayMarker{Date: "2024-01-01T00:00:00.000Z", ReplayID: 3}).IsZero() {
		t.Fatalf("expected populated marker")
	}
}
