package gateway

import (
	"encoding/json"
	"strings"
)

// The engine's listing endpoints are not shape-stable: depending on the
// engine version a response is a bare array or an object wrapping it in
// "chats"/"messages"/"data", and ids arrive as strings or as serialized
// objects. Normalization flattens all of that into the gateway types.

// unwrapList peels the wrapper object (if any) off a listing response.
func unwrapList(raw json.RawMessage, keys ...string) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	for _, key := range keys {
		if inner, ok := wrapper[key]; ok {
			if err := json.Unmarshal(inner, &items); err == nil {
				return items
			}
		}
	}
	return nil
}

// flexID decodes an id that may be "abc@c.us", {"_serialized": ...},
// {"id": ...} or {"user": ..., "server": ...}.
func flexID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Serialized string `json:"_serialized"`
		ID         string `json:"id"`
		User       string `json:"user"`
		Server     string `json:"server"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	switch {
	case obj.Serialized != "":
		return obj.Serialized
	case obj.ID != "":
		return obj.ID
	case obj.User != "" && obj.Server != "":
		return obj.User + "@" + obj.Server
	default:
		return ""
	}
}

// normalizeTimestamp converts the second-resolution timestamps some
// engine endpoints report into milliseconds.
func normalizeTimestamp(ts int64) int64 {
	if ts > 0 && ts < 1_000_000_000_000 {
		return ts * 1000
	}
	return ts
}

type rawChat struct {
	ID             json.RawMessage `json:"id"`
	Name           string          `json:"name"`
	Subject        string          `json:"subject"`
	FormattedTitle string          `json:"formattedTitle"`
	IsGroup        *bool           `json:"isGroup"`
	Timestamp      int64           `json:"timestamp"`
	ConvTimestamp  int64           `json:"conversationTimestamp"`
	LastMessage    json.RawMessage `json:"lastMessage"`
	Participants   json.RawMessage `json:"participants"`
	ParticipantsN  int             `json:"participantsCount"`
}

// normalizeChats flattens a raw chat/group listing. Entries that cannot
// produce an id are dropped; a missing name is left empty for the caller's
// id+name filter.
func normalizeChats(raw json.RawMessage) []Chat {
	items := unwrapList(raw, "chats", "groups", "data")
	chats := make([]Chat, 0, len(items))
	for _, item := range items {
		var rc rawChat
		if err := json.Unmarshal(item, &rc); err != nil {
			continue
		}
		id := flexID(rc.ID)
		if id == "" {
			continue
		}
		name := firstNonEmpty(rc.Name, rc.Subject, rc.FormattedTitle)

		// A missing isGroup flag is not "not a group": the id convention
		// decides.
		isGroup := strings.HasSuffix(id, GroupIDSuffix)
		if rc.IsGroup != nil && *rc.IsGroup {
			isGroup = true
		}

		ts := rc.Timestamp
		if ts == 0 {
			ts = rc.ConvTimestamp
		}

		chats = append(chats, Chat{
			ID:               id,
			Name:             name,
			IsGroup:          isGroup,
			LastMessage:      lastMessagePreview(rc.LastMessage),
			Timestamp:        normalizeTimestamp(ts),
			ParticipantCount: participantCount(rc.Participants, rc.ParticipantsN),
		})
	}
	return chats
}

func lastMessagePreview(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Body string `json:"body"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return firstNonEmpty(obj.Body, obj.Text)
}

func participantCount(raw json.RawMessage, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if len(raw) == 0 {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

type rawMessage struct {
	ID        json.RawMessage `json:"id"`
	Body      string          `json:"body"`
	Text      string          `json:"text"`
	Caption   string          `json:"caption"`
	From      string          `json:"from"`
	Author    string          `json:"author"`
	FromMe    bool            `json:"fromMe"`
	Timestamp int64           `json:"timestamp"`
	Type      string          `json:"type"`
	MimeType  string          `json:"mimeType"`
	ChatID    json.RawMessage `json:"chatId"`
	MediaURL  string          `json:"mediaUrl"`
	HasMedia  bool            `json:"hasMedia"`
	Media     json.RawMessage `json:"media"`
}

// normalizeMessages flattens a raw message listing for one chat.
func normalizeMessages(raw json.RawMessage, chatID string) []Message {
	items := unwrapList(raw, "messages", "data")
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		if msg, ok := normalizeMessage(item, chatID); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// normalizeMessage flattens a single raw message record. fallbackChatID
// fills the chat when the record carries none.
func normalizeMessage(item json.RawMessage, fallbackChatID string) (Message, bool) {
	var rm rawMessage
	if err := json.Unmarshal(item, &rm); err != nil {
		return Message{}, false
	}
	id := flexID(rm.ID)
	if id == "" {
		return Message{}, false
	}
	chat := flexID(rm.ChatID)
	if chat == "" {
		chat = fallbackChatID
	}
	return Message{
		ID:        id,
		Body:      firstNonEmpty(rm.Body, rm.Text, rm.Caption),
		From:      firstNonEmpty(rm.Author, rm.From),
		FromMe:    rm.FromMe,
		Timestamp: normalizeTimestamp(rm.Timestamp),
		Type:      messageType(rm),
		ChatID:    chat,
		MediaURL:  firstNonEmpty(rm.MediaURL, mediaURL(rm.Media)),
	}, true
}

func messageType(rm rawMessage) string {
	if rm.Type != "" {
		return rm.Type
	}
	if strings.HasPrefix(rm.MimeType, "image/") {
		return "image"
	}
	if rm.HasMedia || len(rm.Media) > 0 {
		return "media"
	}
	return "chat"
}

func mediaURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return obj.URL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
