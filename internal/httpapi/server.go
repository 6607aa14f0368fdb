package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/broadcast"
	"github.com/mementolab/wagate/internal/config"
	"github.com/mementolab/wagate/internal/gateway"
	"github.com/mementolab/wagate/internal/observability"
)

// Server is the local HTTP surface: webhook ingestion, the caller-facing
// API consumed by the application's controllers, the realtime websocket
// feed and operational endpoints.
type Server struct {
	cfg     *config.Config
	gw      *gateway.Gateway
	hub     *broadcast.Hub
	metrics *observability.Metrics
	logger  *zap.Logger
	httpSrv *http.Server
}

// New creates the server. hub and metrics may be nil in tests.
func New(cfg *config.Config, gw *gateway.Gateway, hub *broadcast.Hub, metrics *observability.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		gw:      gw,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			s.metrics.Handler().ServeHTTP(w, req)
		})
	}
	r.Post("/webhook", s.handleWebhook)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/session/start", s.handleStartSession)
		r.Post("/session/stop", s.handleStopSession)
		r.Post("/session/restart", s.handleRestartSession)
		r.Post("/session/recover", s.handleRecoverSession)
		r.Get("/qr", s.handleQR)
		r.Post("/auth/request-code", s.handleRequestCode)
		r.Post("/auth/verify-code", s.handleVerifyCode)
		r.Post("/send/text", s.handleSendText)
		r.Post("/send/media", s.handleSendMedia)
		r.Get("/chats", s.handleChats)
		r.Get("/chats/{chatID}/messages", s.handleMessages)
		r.Get("/messages/recent", s.handleRecentMessages)
		r.Get("/groups", s.handleGroups)
		r.Get("/groups/{groupID}", s.handleGroup)
		r.Get("/groups/{groupID}/participants", s.handleGroupParticipants)
		r.Post("/groups/refresh", s.handleRefreshGroups)
	})

	return r
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.cfg.HTTP.ListenAddr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	_ = s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.gw.HealthCheck(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// handleWebhook acknowledges the envelope immediately and dispatches in
// the background; the engine must never wait on downstream work.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var evt gateway.WebhookEvent
	if err := decodeJSON(r, &evt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_envelope", err.Error())
		return
	}
	if evt.Event == "" {
		respondError(w, http.StatusBadRequest, "invalid_envelope", "missing event field")
		return
	}
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(evt.Event).Inc()
	}

	go func() {
		if err := s.gw.HandleWebhook(context.Background(), evt); err != nil {
			s.logger.Warn("webhook dispatch failed",
				zap.String("event", evt.Event),
				zap.String("event_id", evt.ID),
				zap.Error(err))
		}
	}()

	respondJSON(w, http.StatusOK, map[string]string{"id": evt.ID, "status": "accepted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gw.GetStatus(r.Context()))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gw.StartSession(r.Context())
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.gw.StopSession(r.Context()); err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleRestartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gw.RestartSession(r.Context())
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRecoverSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gw.RestartFailedSession(r.Context())
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	dataURL, err := s.gw.GetQRCode(r.Context(), force)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"qr": dataURL})
}

func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	result, err := s.gw.RequestPhoneCode(r.Context(), req.PhoneNumber)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	result, err := s.gw.VerifyPhoneCode(r.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chatId"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	receipt, err := s.gw.SendMessage(r.Context(), req.ChatID, req.Text)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string `json:"chatId"`
		FileURL string `json:"fileUrl"`
		Caption string `json:"caption"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	receipt, err := s.gw.SendMedia(r.Context(), req.ChatID, req.FileURL, req.Caption)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gw.GetChats(r.Context(), listOptions(r)))
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gw.GetGroups(r.Context(), listOptions(r)))
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	raw, err := s.gw.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, raw)
}

func (s *Server) handleGroupParticipants(w http.ResponseWriter, r *http.Request) {
	raw, err := s.gw.GetGroupParticipants(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, raw)
}

func (s *Server) handleRefreshGroups(w http.ResponseWriter, r *http.Request) {
	if err := s.gw.RefreshGroups(r.Context()); err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshing"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.gw.GetMessages(r.Context(), chi.URLParam(r, "chatID"), queryInt(r, "limit"))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleRecentMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gw.GetRecentMessages(r.Context(), queryInt(r, "limit")))
}

func listOptions(r *http.Request) gateway.ChatListOptions {
	return gateway.ChatListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
