package engine

import "encoding/json"

// SessionInfo is the engine's view of one session.
type SessionInfo struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Me     *MeInfo `json:"me,omitempty"`
}

// MeInfo identifies the account behind a WORKING session.
type MeInfo struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// WebhookConfig is one webhook target registered with the engine.
type WebhookConfig struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// QRResult is the engine's answer to a QR fetch: either a rendered image
// or a raw pairing value the caller must render itself.
type QRResult struct {
	Image       []byte
	ContentType string
	Value       string
}

// ListOptions narrows chat/group listing calls.
type ListOptions struct {
	Limit  int
	Offset int
	SortBy string
}

// Raw aliases json.RawMessage for listing endpoints whose shape varies
// between engine versions; normalization happens in the gateway.
type Raw = json.RawMessage
