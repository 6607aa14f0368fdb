package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/gateway"
)

// Client posts group image-message metadata to the monitoring
// collaborator. Callers treat it fire-and-forget; errors are returned for
// logging only and never reach the original webhook sender.
type Client struct {
	url     string
	timeout time.Duration
	httpc   *http.Client
	logger  *zap.Logger
}

// New creates a forwarder. An empty URL yields a disabled client.
func New(url string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		httpc:   &http.Client{},
		logger:  logger,
	}
}

// Enabled reports whether a target URL is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// ForwardImage implements gateway.Forwarder.
func (c *Client) ForwardImage(ctx context.Context, msg gateway.ImageMessage) error {
	if !c.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode image forward: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build image forward: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post image forward: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image forward rejected: status %d", resp.StatusCode)
	}
	c.logger.Debug("image forwarded",
		zap.String("chat", msg.ChatID),
		zap.String("message_id", msg.MessageID))
	return nil
}
