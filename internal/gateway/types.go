package gateway

import "encoding/json"

// GroupIDSuffix is the group-chat identifier convention of the messaging
// network. A chat whose id carries it is a group even if the upstream
// record omits the explicit flag.
const GroupIDSuffix = "@g.us"

// Chat is one normalized conversation.
type Chat struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsGroup          bool   `json:"isGroup"`
	LastMessage      string `json:"lastMessage,omitempty"`
	Timestamp        int64  `json:"timestamp,omitempty"`
	ParticipantCount int    `json:"participantCount,omitempty"`
}

// Message is one normalized chat message.
type Message struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	ChatID    string `json:"chatId"`
	MediaURL  string `json:"mediaUrl,omitempty"`
}

// WebhookEvent is the push envelope delivered by the engine. It is
// translated into domain events and discarded, never persisted.
type WebhookEvent struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Event     string          `json:"event"`
	Session   string          `json:"session"`
	Payload   json.RawMessage `json:"payload"`
}

// ImageMessage is the metadata handed to the downstream image-processing
// collaborator for group images.
type ImageMessage struct {
	Session   string `json:"session"`
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Caption   string `json:"caption,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HealthResult is the cached outcome of a health probe sequence.
type HealthResult struct {
	Healthy   bool   `json:"healthy"`
	Endpoint  string `json:"endpoint,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CheckedAt int64  `json:"checkedAt"`
}

// ConnectivitySnapshot is what the Broadcaster publishes to realtime
// UI consumers after every status observation.
type ConnectivitySnapshot struct {
	Session   string `json:"session"`
	State     State  `json:"state"`
	Connected bool   `json:"connected"`
	Timestamp int64  `json:"timestamp"`
}

// AuthResult is the outcome of a phone pairing operation. Capability
// absence comes back as Success=false with an actionable message, not
// as a transport error.
type AuthResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SendReceipt acknowledges an accepted outbound message.
type SendReceipt struct {
	MessageID string          `json:"messageId,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// ChatListOptions narrows chat listing.
type ChatListOptions struct {
	Limit  int
	Offset int
}
