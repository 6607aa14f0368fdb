package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "secret", "", zap.NewNop(), nil)
}

func TestAPIKeyHeader(t *testing.T) {
	var gotKey string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	})

	if err := c.Ping(context.Background(), "/api/health", time.Second); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("X-Api-Key = %q, want secret", gotKey)
	}
}

func TestCreateSessionEngineHint(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "gows", zap.NewNop(), nil)
	if err := c.CreateSession(context.Background(), "default", time.Second); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if body["name"] != "default" {
		t.Errorf("name = %v, want default", body["name"])
	}
	cfg, ok := body["config"].(map[string]any)
	if !ok || cfg["engine"] != "gows" {
		t.Errorf("config = %v, want engine hint gows", body["config"])
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusUnprocessableEntity, ErrNotReady},
		{http.StatusNotImplemented, ErrNotSupported},
		{http.StatusMethodNotAllowed, ErrNotSupported},
		{http.StatusRequestTimeout, ErrTimeout},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := c.StartSession(context.Background(), "default", time.Second)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Errorf("status %d: expected *APIError, got %T", tt.status, err)
		} else if apiErr.Status != tt.status {
			t.Errorf("APIError.Status = %d, want %d", apiErr.Status, tt.status)
		}
	}
}

func TestTimeoutBecomesErrTimeout(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	err := c.Ping(context.Background(), "/api/health", 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestUnreachableBecomesErrUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "", zap.NewNop(), nil)
	err := c.Ping(context.Background(), "/api/health", time.Second)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestGetSessionFillsName(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"WORKING"}`))
	})

	info, err := c.GetSession(context.Background(), "default", time.Second)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if info.Name != "default" {
		t.Errorf("Name = %q, want default", info.Name)
	}
	if info.Status != "WORKING" {
		t.Errorf("Status = %q, want WORKING", info.Status)
	}
}

func TestGetQRJSONValue(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"2@pairing-payload"}`))
	})

	qr, err := c.GetQR(context.Background(), "default", time.Second)
	if err != nil {
		t.Fatalf("GetQR() error = %v", err)
	}
	if qr.Value != "2@pairing-payload" {
		t.Errorf("Value = %q", qr.Value)
	}
	if len(qr.Image) != 0 {
		t.Error("expected no image bytes for JSON response")
	}
}

func TestGetQRBinaryImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	qr, err := c.GetQR(context.Background(), "default", time.Second)
	if err != nil {
		t.Fatalf("GetQR() error = %v", err)
	}
	if string(qr.Image) != string(png) {
		t.Errorf("Image = %v, want PNG bytes", qr.Image)
	}
	if qr.ContentType != "image/png" {
		t.Errorf("ContentType = %q", qr.ContentType)
	}
}

func TestGetQREmptyPayloadNotReady(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.GetQR(context.Background(), "default", time.Second)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestListChatsQuery(t *testing.T) {
	var gotQuery string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.ListChats(context.Background(), "default", ListOptions{Limit: 10, SortBy: "timestamp"}, time.Second)
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if gotQuery != "limit=10&sortBy=timestamp" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestSendTextPayload(t *testing.T) {
	var body map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg1"}`))
	})

	raw, err := c.SendText(context.Background(), "default", "123@c.us", "hello", time.Second)
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if body["session"] != "default" || body["chatId"] != "123@c.us" || body["text"] != "hello" {
		t.Errorf("payload = %v", body)
	}
	if len(raw) == 0 {
		t.Error("expected raw response body")
	}
}
