package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// HandleWebhook translates one engine push envelope into domain events.
// Unknown event types are logged and dropped; replayed event ids are
// dropped silently. Only a malformed payload is an error.
func (g *Gateway) HandleWebhook(ctx context.Context, evt WebhookEvent) error {
	if g.markSeen(evt.ID) {
		g.logger.Debug("dropping replayed webhook event", zap.String("event_id", evt.ID))
		return nil
	}

	switch evt.Event {
	case "message":
		return g.handleMessageEvent(ctx, evt)
	case "session.status":
		return g.handleStatusEvent(evt)
	default:
		g.logger.Info("ignoring unknown webhook event",
			zap.String("event", evt.Event),
			zap.String("session", evt.Session))
		return nil
	}
}

func (g *Gateway) handleMessageEvent(ctx context.Context, evt WebhookEvent) error {
	msg, ok := normalizeMessage(evt.Payload, "")
	if !ok {
		return fmt.Errorf("webhook message %s: payload has no message id", evt.ID)
	}

	g.publish(EventMessage, msg)

	if g.forwarder != nil && msg.Type == "image" && strings.HasSuffix(msg.ChatID, GroupIDSuffix) {
		g.forwardImage(ctx, evt, msg)
	}
	return nil
}

// forwardImage hands a group image to the downstream collaborator in the
// background. The failure stays here: it is logged and published as a
// gateway error event, never returned to the webhook caller.
func (g *Gateway) forwardImage(_ context.Context, evt WebhookEvent, msg Message) {
	fwd := ImageMessage{
		Session:   evt.Session,
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		From:      msg.From,
		Caption:   msg.Body,
		MediaURL:  msg.MediaURL,
		Timestamp: msg.Timestamp,
	}
	go func() {
		// The webhook response must not wait on the collaborator, so the
		// forward runs on its own context.
		if err := g.forwarder.ForwardImage(context.Background(), fwd); err != nil {
			g.logger.Warn("image forward failed",
				zap.String("chat", msg.ChatID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			g.publish(EventError, ErrorPayload{
				Session: evt.Session,
				Scope:   "forward",
				Err:     err.Error(),
			})
		}
	}()
}

func (g *Gateway) handleStatusEvent(evt WebhookEvent) error {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("webhook status %s: decode payload: %w", evt.ID, err)
	}
	if payload.Status == "" {
		return fmt.Errorf("webhook status %s: empty status", evt.ID)
	}

	newState := State(payload.Status)
	prev := g.applyState(newState)
	// Webhook delivery keeps the view current; no remote fetch is needed
	// until the TTL next expires.
	g.session.MarkFetched(g.now())

	wasReady := prev == StateWorking
	isReady := newState == StateWorking

	g.publish(EventStatusChange, StatusChangePayload{
		Session: evt.Session,
		From:    prev,
		To:      newState,
	})

	// Exactly one authenticated event per transition into WORKING; a
	// repeated WORKING delivery is a status change only.
	if !wasReady && isReady {
		g.publish(EventAuthenticated, AuthenticatedPayload{
			Session: evt.Session,
			Method:  "qr",
			EventID: evt.ID,
		})
		g.logger.Info("session authenticated", zap.String("session", evt.Session))
	}

	g.publishSnapshot(g.session.Snapshot(), g.now())
	return nil
}
