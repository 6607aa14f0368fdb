package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/engine"
)

// listAttempt is one step of the chat retrieval fallback ladder. The
// policy is data, not control flow: one loop walks the ladder and exits
// on the first attempt yielding a non-empty normalized list.
type listAttempt struct {
	name        string
	timeout     time.Duration
	delayBefore time.Duration
	overview    bool
}

func (g *Gateway) chatAttempts() []listAttempt {
	t := g.cfg.Tuning
	return []listAttempt{
		{name: "overview", timeout: t.ListLongTimeout.Duration, overview: true},
		{name: "chats-long", timeout: t.ListLongTimeout.Duration},
		{name: "chats-medium", timeout: t.ListMediumTimeout.Duration, delayBefore: t.ListRetryDelay.Duration},
		{name: "chats-short", timeout: t.ListShortTimeout.Duration, delayBefore: t.ListRetryDelay.Duration},
	}
}

// GetChats lists chats through the fallback ladder. Total upstream failure
// degrades to an empty list: downstream consumers need an answer, not an
// exception. Results require a non-empty id and name and are capped.
func (g *Gateway) GetChats(ctx context.Context, opts ChatListOptions) []Chat {
	for _, attempt := range g.chatAttempts() {
		if attempt.delayBefore > 0 {
			time.Sleep(attempt.delayBefore)
		}
		var raw engine.Raw
		var err error
		if attempt.overview {
			raw, err = g.engine.ChatsOverview(ctx, g.cfg.Session, attempt.timeout)
		} else {
			raw, err = g.engine.ListChats(ctx, g.cfg.Session, engine.ListOptions{
				Limit:  opts.Limit,
				Offset: opts.Offset,
				SortBy: "conversationTimestamp",
			}, attempt.timeout)
		}
		if err != nil {
			g.logger.Warn("chat listing attempt failed",
				zap.String("attempt", attempt.name),
				zap.String("session", g.cfg.Session),
				zap.Error(err))
			continue
		}
		chats := normalizeChats(raw)
		if len(chats) == 0 {
			continue
		}
		chats = g.capChats(chats)
		g.publish(EventChatsUpdated, ChatsUpdatedPayload{Session: g.cfg.Session, Count: len(chats)})
		return chats
	}
	g.logger.Warn("all chat listing attempts exhausted, returning empty list",
		zap.String("session", g.cfg.Session))
	return []Chat{}
}

// GetGroups lists group chats via the dedicated endpoint, falling back to
// filtering GetChats by the group id convention when the endpoint is
// absent in the running engine.
func (g *Gateway) GetGroups(ctx context.Context, opts ChatListOptions) []Chat {
	raw, err := g.engine.ListGroups(ctx, g.cfg.Session, engine.ListOptions{
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}, g.cfg.Tuning.ListMediumTimeout.Duration)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) || errors.Is(err, engine.ErrNotSupported) {
			g.logger.Info("groups endpoint unavailable, filtering chats instead",
				zap.String("session", g.cfg.Session))
			return filterGroups(g.GetChats(ctx, opts))
		}
		g.logger.Warn("group listing failed",
			zap.String("session", g.cfg.Session),
			zap.Error(err))
		return []Chat{}
	}
	groups := normalizeChats(raw)
	for i := range groups {
		groups[i].IsGroup = true
	}
	return g.capChats(groups)
}

// GetGroup returns one group's raw detail record.
func (g *Gateway) GetGroup(ctx context.Context, groupID string) (json.RawMessage, error) {
	if err := validateChatID(groupID); err != nil {
		return nil, err
	}
	raw, err := g.engine.GetGroup(ctx, g.cfg.Session, groupID, g.cfg.Tuning.CallTimeout.Duration)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// GetGroupParticipants returns a group's raw participant list.
func (g *Gateway) GetGroupParticipants(ctx context.Context, groupID string) (json.RawMessage, error) {
	if err := validateChatID(groupID); err != nil {
		return nil, err
	}
	raw, err := g.engine.GetGroupParticipants(ctx, g.cfg.Session, groupID, g.cfg.Tuning.CallTimeout.Duration)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// RefreshGroups asks the engine to rebuild its group metadata cache.
func (g *Gateway) RefreshGroups(ctx context.Context) error {
	return g.engine.RefreshGroups(ctx, g.cfg.Session, g.cfg.Tuning.ListMediumTimeout.Duration)
}

// GetMessages lists one chat's messages, newest first. Upstream failure
// degrades to an empty list; only local validation errors propagate.
func (g *Gateway) GetMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if err := validateChatID(chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	raw, err := g.engine.ListMessages(ctx, g.cfg.Session, chatID, limit, g.cfg.Tuning.ListShortTimeout.Duration)
	if err != nil {
		g.logger.Warn("message listing failed",
			zap.String("session", g.cfg.Session),
			zap.String("chat", chatID),
			zap.Error(err))
		return []Message{}, nil
	}
	msgs := normalizeMessages(raw, chatID)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// recentChatFanout bounds how many chats GetRecentMessages samples.
const recentChatFanout = 10

// GetRecentMessages aggregates the newest messages across the most
// recently active chats. A failing chat is logged and skipped; it must
// not abort its siblings.
func (g *Gateway) GetRecentMessages(ctx context.Context, limit int) []Message {
	if limit <= 0 {
		limit = 50
	}
	chats := g.GetChats(ctx, ChatListOptions{})
	if len(chats) == 0 {
		return []Message{}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].Timestamp > chats[j].Timestamp
	})
	if len(chats) > recentChatFanout {
		chats = chats[:recentChatFanout]
	}

	perChat := limit / len(chats)
	if perChat < 1 {
		perChat = 1
	}

	var merged []Message
	for _, chat := range chats {
		msgs, err := g.GetMessages(ctx, chat.ID, perChat)
		if err != nil {
			g.logger.Warn("skipping chat in recent aggregation",
				zap.String("chat", chat.ID),
				zap.Error(err))
			continue
		}
		merged = append(merged, msgs...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []Message{}
	}
	return merged
}

func (g *Gateway) capChats(chats []Chat) []Chat {
	filtered := chats[:0]
	for _, c := range chats {
		if c.ID == "" || c.Name == "" {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) > g.cfg.Tuning.ChatCap {
		filtered = filtered[:g.cfg.Tuning.ChatCap]
	}
	return filtered
}

func filterGroups(chats []Chat) []Chat {
	groups := make([]Chat, 0, len(chats))
	for _, c := range chats {
		if c.IsGroup {
			groups = append(groups, c)
		}
	}
	return groups
}

func validateChatID(chatID string) error {
	if strings.TrimSpace(chatID) == "" || !strings.Contains(chatID, "@") {
		return fmt.Errorf("invalid chat id %q: %w", chatID, engine.ErrValidation)
	}
	return nil
}
