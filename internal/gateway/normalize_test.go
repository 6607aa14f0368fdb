package gateway

import (
	"encoding/json"
	"testing"
)

func TestFlexID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"111@c.us"`, "111@c.us"},
		{"serialized", `{"_serialized":"222@c.us"}`, "222@c.us"},
		{"id field", `{"id":"333@c.us"}`, "333@c.us"},
		{"user and server", `{"user":"444","server":"g.us"}`, "444@g.us"},
		{"empty object", `{}`, ""},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flexID(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("flexID(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in, want int64
	}{
		{0, 0},
		{1700000000, 1700000000000},
		{1700000000000, 1700000000000},
	}
	for _, tt := range tests {
		if got := normalizeTimestamp(tt.in); got != tt.want {
			t.Errorf("normalizeTimestamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeChatsShapes(t *testing.T) {
	// Bare array, wrapped object and object ids must all flatten the same.
	bare := json.RawMessage(`[{"id":"1@c.us","name":"One"}]`)
	wrapped := json.RawMessage(`{"chats":[{"id":{"_serialized":"1@c.us"},"subject":"One"}]}`)

	for _, raw := range []json.RawMessage{bare, wrapped} {
		chats := normalizeChats(raw)
		if len(chats) != 1 {
			t.Fatalf("chats = %+v", chats)
		}
		if chats[0].ID != "1@c.us" || chats[0].Name != "One" {
			t.Errorf("chats[0] = %+v", chats[0])
		}
	}
}

func TestNormalizeChatsGroupDetection(t *testing.T) {
	raw := json.RawMessage(`[
		{"id":"555@g.us","name":"ByConvention"},
		{"id":"111@c.us","name":"ByFlag","isGroup":true},
		{"id":"222@c.us","name":"Direct","isGroup":false},
		{"id":"333@c.us","name":"NoFlag"}
	]`)
	chats := normalizeChats(raw)
	if len(chats) != 4 {
		t.Fatalf("chats = %+v", chats)
	}
	wantGroup := map[string]bool{
		"555@g.us": true,
		"111@c.us": true,
		"222@c.us": false,
		"333@c.us": false,
	}
	for _, c := range chats {
		if c.IsGroup != wantGroup[c.ID] {
			t.Errorf("%s: IsGroup = %v, want %v", c.ID, c.IsGroup, wantGroup[c.ID])
		}
	}
}

func TestNormalizeChatsDropsIDless(t *testing.T) {
	raw := json.RawMessage(`[{"name":"ghost"},{"id":"1@c.us","name":"real"}]`)
	chats := normalizeChats(raw)
	if len(chats) != 1 || chats[0].ID != "1@c.us" {
		t.Errorf("chats = %+v", chats)
	}
}

func TestNormalizeChatsPreviewAndParticipants(t *testing.T) {
	raw := json.RawMessage(`[{
		"id":"555@g.us",
		"subject":"Ops",
		"conversationTimestamp":1700000000,
		"lastMessage":{"body":"deploy done"},
		"participants":[{},{},{}]
	}]`)
	chats := normalizeChats(raw)
	if len(chats) != 1 {
		t.Fatalf("chats = %+v", chats)
	}
	c := chats[0]
	if c.LastMessage != "deploy done" {
		t.Errorf("LastMessage = %q", c.LastMessage)
	}
	if c.ParticipantCount != 3 {
		t.Errorf("ParticipantCount = %d, want 3", c.ParticipantCount)
	}
	if c.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d", c.Timestamp)
	}
}

func TestNormalizeMessageTypeInference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"explicit type", `{"id":"m1","type":"video"}`, "video"},
		{"image mime", `{"id":"m2","mimeType":"image/jpeg"}`, "image"},
		{"generic media", `{"id":"m3","hasMedia":true}`, "media"},
		{"plain", `{"id":"m4","body":"hi"}`, "chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := normalizeMessage(json.RawMessage(tt.raw), "1@c.us")
			if !ok {
				t.Fatal("normalizeMessage rejected the record")
			}
			if msg.Type != tt.want {
				t.Errorf("Type = %q, want %q", msg.Type, tt.want)
			}
		})
	}
}

func TestNormalizeMessageMediaURL(t *testing.T) {
	raw := json.RawMessage(`{"id":"m1","media":{"url":"http://engine/media/m1"}}`)
	msg, ok := normalizeMessage(raw, "1@c.us")
	if !ok {
		t.Fatal("rejected")
	}
	if msg.MediaURL != "http://engine/media/m1" {
		t.Errorf("MediaURL = %q", msg.MediaURL)
	}
}

func TestNormalizeMessageAuthorPreferred(t *testing.T) {
	raw := json.RawMessage(`{"id":"m1","from":"555@g.us","author":"111@c.us"}`)
	msg, ok := normalizeMessage(raw, "")
	if !ok {
		t.Fatal("rejected")
	}
	// In groups "from" is the chat; "author" is the actual sender.
	if msg.From != "111@c.us" {
		t.Errorf("From = %q, want the author", msg.From)
	}
}

func TestUnwrapListUnknownWrapper(t *testing.T) {
	raw := json.RawMessage(`{"payload":[{"id":"1"}]}`)
	if items := unwrapList(raw, "chats", "data"); items != nil {
		t.Errorf("items = %v, want nil for unknown wrapper key", items)
	}
}
