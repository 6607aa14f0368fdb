package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mementolab/wagate/internal/engine"
)

// SendMessage sends a text message. Send failures propagate typed: a
// silently empty answer here would be misleading, unlike listings.
func (g *Gateway) SendMessage(ctx context.Context, chatID, text string) (SendReceipt, error) {
	if err := validateChatID(chatID); err != nil {
		return SendReceipt{}, err
	}
	if strings.TrimSpace(text) == "" {
		return SendReceipt{}, fmt.Errorf("empty message body: %w", engine.ErrValidation)
	}
	raw, err := g.engine.SendText(ctx, g.cfg.Session, chatID, text, g.cfg.Tuning.SendTimeout.Duration)
	if err != nil {
		return SendReceipt{}, fmt.Errorf("send text to %s: %w", chatID, err)
	}
	return receiptFrom(raw), nil
}

// SendMedia sends a media message by URL.
func (g *Gateway) SendMedia(ctx context.Context, chatID, fileURL, caption string) (SendReceipt, error) {
	if err := validateChatID(chatID); err != nil {
		return SendReceipt{}, err
	}
	if strings.TrimSpace(fileURL) == "" {
		return SendReceipt{}, fmt.Errorf("empty media url: %w", engine.ErrValidation)
	}
	raw, err := g.engine.SendFile(ctx, g.cfg.Session, chatID, fileURL, caption, g.cfg.Tuning.SendTimeout.Duration)
	if err != nil {
		return SendReceipt{}, fmt.Errorf("send media to %s: %w", chatID, err)
	}
	return receiptFrom(raw), nil
}

// receiptFrom mines the acknowledged message id out of the engine's
// answer, keeping the raw body for callers that want more.
func receiptFrom(raw engine.Raw) SendReceipt {
	receipt := SendReceipt{Raw: json.RawMessage(raw)}
	var payload struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		receipt.MessageID = flexID(payload.ID)
	}
	return receipt
}
