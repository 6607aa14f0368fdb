package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/bus"
	"github.com/mementolab/wagate/internal/config"
	"github.com/mementolab/wagate/internal/engine"
	"github.com/mementolab/wagate/internal/gateway"
)

// stubEngine is a minimal healthy EngineAPI for handler tests.
type stubEngine struct {
	status string
}

func (s *stubEngine) CreateSession(context.Context, string, time.Duration) error { return nil }
func (s *stubEngine) GetSession(_ context.Context, name string, _ time.Duration) (*engine.SessionInfo, error) {
	return &engine.SessionInfo{Name: name, Status: s.status}, nil
}
func (s *stubEngine) DeleteSession(context.Context, string, time.Duration) error { return nil }
func (s *stubEngine) StartSession(context.Context, string, time.Duration) error  { return nil }
func (s *stubEngine) ConfigureWebhooks(context.Context, string, []engine.WebhookConfig, time.Duration) error {
	return nil
}
func (s *stubEngine) GetQR(context.Context, string, time.Duration) (*engine.QRResult, error) {
	return &engine.QRResult{Value: "pairing"}, nil
}
func (s *stubEngine) RequestCode(context.Context, string, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`{"code":"AB-12"}`), nil
}
func (s *stubEngine) AuthorizeCode(context.Context, string, string, string, time.Duration) error {
	return nil
}
func (s *stubEngine) SendText(context.Context, string, string, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`{"id":"m1"}`), nil
}
func (s *stubEngine) SendFile(context.Context, string, string, string, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`{"id":"m2"}`), nil
}
func (s *stubEngine) ListChats(context.Context, string, engine.ListOptions, time.Duration) (engine.Raw, error) {
	return engine.Raw(`[]`), nil
}
func (s *stubEngine) ChatsOverview(context.Context, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`[{"id":"1@c.us","name":"One"}]`), nil
}
func (s *stubEngine) ListGroups(context.Context, string, engine.ListOptions, time.Duration) (engine.Raw, error) {
	return engine.Raw(`[]`), nil
}
func (s *stubEngine) GetGroup(context.Context, string, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`{"id":"555@g.us"}`), nil
}
func (s *stubEngine) GetGroupParticipants(context.Context, string, string, time.Duration) (engine.Raw, error) {
	return engine.Raw(`[]`), nil
}
func (s *stubEngine) RefreshGroups(context.Context, string, time.Duration) error { return nil }
func (s *stubEngine) ListMessages(context.Context, string, string, int, time.Duration) (engine.Raw, error) {
	return engine.Raw(`[]`), nil
}
func (s *stubEngine) Ping(context.Context, string, time.Duration) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	gw := gateway.New(cfg, &stubEngine{status: "WORKING"}, bus.New(), nil, nil, zap.NewNop(), nil)
	return New(cfg, gw, nil, nil, zap.NewNop())
}

func TestWebhookAccepted(t *testing.T) {
	srv := newTestServer(t)

	body := `{"id":"evt-1","event":"session.status","session":"default","payload":{"status":"WORKING"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] != "evt-1" || resp["status"] != "accepted" {
		t.Errorf("resp = %v", resp)
	}
}

func TestWebhookMalformed(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]string{
		"broken json":   `{"id":`,
		"missing event": `{"id":"evt-2","payload":{}}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var sess gateway.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	if sess.State != gateway.StateWorking {
		t.Errorf("State = %s, want WORKING", sess.State)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSendTextValidationError(t *testing.T) {
	srv := newTestServer(t)

	body := `{"chatId":"not-an-id","text":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send/text", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an invalid chat id", rec.Code)
	}
}

func TestSendTextOK(t *testing.T) {
	srv := newTestServer(t)

	body := `{"chatId":"111@c.us","text":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send/text", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var receipt gateway.SendReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatal(err)
	}
	if receipt.MessageID != "m1" {
		t.Errorf("MessageID = %q, want m1", receipt.MessageID)
	}
}

func TestChatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var chats []gateway.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chats); err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].ID != "1@c.us" {
		t.Errorf("chats = %+v", chats)
	}
}

func TestRespondGatewayErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.ErrValidation, http.StatusBadRequest},
		{engine.ErrNotFound, http.StatusNotFound},
		{engine.ErrConflict, http.StatusConflict},
		{engine.ErrNotReady, http.StatusUnprocessableEntity},
		{engine.ErrNotSupported, http.StatusNotImplemented},
		{engine.ErrTimeout, http.StatusGatewayTimeout},
		{engine.ErrUnavailable, http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respondGatewayError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
