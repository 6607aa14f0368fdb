package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/observability"
)

// Client is the authenticated HTTP client to the remote automation engine.
// Every call carries its own bounded timeout; there is no caller-supplied
// cancellation beyond the per-call deadline.
type Client struct {
	baseURL    string
	apiKey     string
	engineName string
	httpc      *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// New creates an engine client. The base URL must carry scheme and host;
// metrics may be nil.
func New(baseURL, apiKey, engineName string, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		engineName: engineName,
		// Per-call deadlines come from contexts; the transport-level
		// timeout is a backstop against stuck connections.
		httpc:   &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
		metrics: metrics,
	}
}

// call performs one JSON request with a bounded timeout. A nil out skips
// decoding. Non-2xx statuses come back as *APIError; transport failures
// are wrapped in ErrUnavailable or ErrTimeout. op is the logical endpoint
// name used for metrics, bounded in cardinality unlike the path.
func (c *Client) call(ctx context.Context, op, method, path string, timeout time.Duration, in, out any) error {
	body, contentType, err := c.request(ctx, op, method, path, timeout, in)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if !strings.Contains(contentType, "json") {
		return fmt.Errorf("engine %s: unexpected content type %q", path, contentType)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("engine %s: decode response: %w", path, err)
	}
	return nil
}

// request is the raw variant of call, returning the body and content type.
func (c *Client) request(ctx context.Context, op, method, path string, timeout time.Duration, in any) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, image/*")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.observe(op, "timeout", elapsed)
			c.logger.Warn("engine call timed out",
				zap.String("endpoint", path),
				zap.Duration("timeout", timeout))
			return nil, "", fmt.Errorf("%s after %s: %w", path, timeout, ErrTimeout)
		}
		c.observe(op, "unreachable", elapsed)
		c.logger.Warn("engine unreachable",
			zap.String("endpoint", path),
			zap.Error(err))
		return nil, "", fmt.Errorf("%s: %v: %w", path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(op, "read_error", elapsed)
		return nil, "", fmt.Errorf("%s: read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, "http_error", elapsed)
		apiErr := &APIError{Endpoint: path, Status: resp.StatusCode, Body: truncateBody(body)}
		c.logger.Warn("engine call failed",
			zap.String("endpoint", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
		return nil, "", apiErr
	}

	c.observe(op, "ok", elapsed)
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) observe(op, outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveEngineCall(op, outcome, d)
	}
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}

// CreateSession registers a new session by name, with the configured
// engine hint when present.
func (c *Client) CreateSession(ctx context.Context, name string, timeout time.Duration) error {
	payload := map[string]any{"name": name}
	if c.engineName != "" {
		payload["config"] = map[string]any{"engine": c.engineName}
	}
	return c.call(ctx, "session_create", http.MethodPost, "/api/sessions", timeout, payload, nil)
}

// GetSession fetches the session by name.
func (c *Client) GetSession(ctx context.Context, name string, timeout time.Duration) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.call(ctx, "session_get", http.MethodGet, "/api/sessions/"+url.PathEscape(name), timeout, nil, &info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = name
	}
	return &info, nil
}

// DeleteSession removes the session.
func (c *Client) DeleteSession(ctx context.Context, name string, timeout time.Duration) error {
	return c.call(ctx, "session_delete", http.MethodDelete, "/api/sessions/"+url.PathEscape(name), timeout, nil, nil)
}

// StartSession asks the engine to start the named session.
func (c *Client) StartSession(ctx context.Context, name string, timeout time.Duration) error {
	return c.call(ctx, "session_start", http.MethodPost, "/api/sessions/"+url.PathEscape(name)+"/start", timeout, nil, nil)
}

// ConfigureWebhooks registers the webhook targets for the session.
func (c *Client) ConfigureWebhooks(ctx context.Context, name string, hooks []WebhookConfig, timeout time.Duration) error {
	payload := map[string]any{"webhooks": hooks}
	return c.call(ctx, "session_config", http.MethodPost, "/api/sessions/"+url.PathEscape(name)+"/config", timeout, payload, nil)
}

// GetQR fetches the pairing QR. Depending on the engine version the
// response is a rendered image or a JSON {value} pairing string.
func (c *Client) GetQR(ctx context.Context, name string, timeout time.Duration) (*QRResult, error) {
	path := "/api/sessions/" + url.PathEscape(name) + "/auth/qr"
	body, contentType, err := c.request(ctx, "auth_qr", http.MethodGet, path, timeout, nil)
	if err != nil {
		return nil, err
	}
	if strings.Contains(contentType, "json") {
		var payload struct {
			Value string `json:"value"`
			Data  string `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("engine %s: decode response: %w", path, err)
		}
		value := payload.Value
		if value == "" {
			value = payload.Data
		}
		if value == "" {
			return nil, fmt.Errorf("engine %s: empty QR payload: %w", path, ErrNotReady)
		}
		return &QRResult{Value: value}, nil
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("engine %s: empty QR image: %w", path, ErrNotReady)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return &QRResult{Image: body, ContentType: contentType}, nil
}

// RequestCode asks the engine for a phone pairing code. The response shape
// varies across engines, so the raw body is returned for the caller to mine.
func (c *Client) RequestCode(ctx context.Context, name, phone string, timeout time.Duration) (Raw, error) {
	path := "/api/sessions/" + url.PathEscape(name) + "/auth/request-code"
	var raw json.RawMessage
	if err := c.call(ctx, "auth_request_code", http.MethodPost, path, timeout, map[string]string{"phoneNumber": phone}, &raw); err != nil {
		return nil, err
	}
	return Raw(raw), nil
}

// AuthorizeCode submits the pairing code the user received.
func (c *Client) AuthorizeCode(ctx context.Context, name, phone, code string, timeout time.Duration) error {
	path := "/api/sessions/" + url.PathEscape(name) + "/auth/authorize-code"
	return c.call(ctx, "auth_authorize_code", http.MethodPost, path, timeout, map[string]string{"phoneNumber": phone, "code": code}, nil)
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, name, chatID, text string, timeout time.Duration) (Raw, error) {
	var raw json.RawMessage
	payload := map[string]string{"session": name, "chatId": chatID, "text": text}
	if err := c.call(ctx, "send_text", http.MethodPost, "/api/sendText", timeout, payload, &raw); err != nil {
		return nil, err
	}
	return Raw(raw), nil
}

// SendFile sends a media message by URL.
func (c *Client) SendFile(ctx context.Context, name, chatID, fileURL, caption string, timeout time.Duration) (Raw, error) {
	var raw json.RawMessage
	payload := map[string]string{"session": name, "chatId": chatID, "fileUrl": fileURL, "caption": caption}
	if err := c.call(ctx, "send_file", http.MethodPost, "/api/sendFile", timeout, payload, &raw); err != nil {
		return nil, err
	}
	return Raw(raw), nil
}

// ListChats returns the raw chat list; shapes differ between engines.
func (c *Client) ListChats(ctx context.Context, name string, opts ListOptions, timeout time.Duration) (Raw, error) {
	return c.list(ctx, "chats_list", "/api/"+url.PathEscape(name)+"/chats", opts, timeout)
}

// ChatsOverview returns the raw aggregate chat overview.
func (c *Client) ChatsOverview(ctx context.Context, name string, timeout time.Duration) (Raw, error) {
	return c.list(ctx, "chats_overview", "/api/"+url.PathEscape(name)+"/chats/overview", ListOptions{}, timeout)
}

// ListGroups returns the raw group list.
func (c *Client) ListGroups(ctx context.Context, name string, opts ListOptions, timeout time.Duration) (Raw, error) {
	return c.list(ctx, "groups_list", "/api/"+url.PathEscape(name)+"/groups", opts, timeout)
}

// GetGroup returns one group's raw detail record.
func (c *Client) GetGroup(ctx context.Context, name, groupID string, timeout time.Duration) (Raw, error) {
	path := "/api/" + url.PathEscape(name) + "/groups/" + url.PathEscape(groupID)
	return c.list(ctx, "group_get", path, ListOptions{}, timeout)
}

// GetGroupParticipants returns a group's raw participant list.
func (c *Client) GetGroupParticipants(ctx context.Context, name, groupID string, timeout time.Duration) (Raw, error) {
	path := "/api/" + url.PathEscape(name) + "/groups/" + url.PathEscape(groupID) + "/participants"
	return c.list(ctx, "group_participants", path, ListOptions{}, timeout)
}

// RefreshGroups asks the engine to refresh its group metadata cache.
func (c *Client) RefreshGroups(ctx context.Context, name string, timeout time.Duration) error {
	return c.call(ctx, "groups_refresh", http.MethodPost, "/api/"+url.PathEscape(name)+"/groups/refresh", timeout, nil, nil)
}

// ListMessages returns the raw message list for one chat.
func (c *Client) ListMessages(ctx context.Context, name, chatID string, limit int, timeout time.Duration) (Raw, error) {
	path := "/api/" + url.PathEscape(name) + "/chats/" + url.PathEscape(chatID) + "/messages"
	return c.list(ctx, "messages_list", path, ListOptions{Limit: limit}, timeout)
}

// Ping probes one lightweight endpoint; any 2xx counts as alive.
func (c *Client) Ping(ctx context.Context, path string, timeout time.Duration) error {
	return c.call(ctx, "ping", http.MethodGet, path, timeout, nil, nil)
}

func (c *Client) list(ctx context.Context, op, path string, opts ListOptions, timeout time.Duration) (Raw, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", fmt.Sprint(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", fmt.Sprint(opts.Offset))
	}
	if opts.SortBy != "" {
		query.Set("sortBy", opts.SortBy)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var raw json.RawMessage
	if err := c.call(ctx, op, http.MethodGet, path, timeout, nil, &raw); err != nil {
		return nil, err
	}
	return Raw(raw), nil
}
