package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vetline/internal/httputil"
	"vetline/internal/metrics"
	"vetline/internal/middleware"
	"vetline/internal/models"
	"vetline/internal/realtime"
	"vetline/internal/service"
	"vetline/pkg/greenapi"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// clinicRuntime bundles the per-tenant services built around one Green API
// instance.
type clinicRuntime struct {
	conversations *service.ConversationService
	sender        *service.SendCoordinator
}

type Server struct {
	router      *mux.Router
	logger      *logrus.Logger
	cfg         *models.Config
	channels    *service.ChannelManager
	ingest      *service.IngestService
	hub         *realtime.Hub
	rateLimiter *RateLimiter
	clinics     map[string]*clinicRuntime
	server      *http.Server
}

func NewServer(cfg *models.Config, channels *service.ChannelManager, ingest *service.IngestService, hub *realtime.Hub, clinics map[string]*clinicRuntime, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		channels: channels,
		ingest:   ingest,
		hub:      hub,
		clinics:  clinics,
		rateLimiter: NewRateLimiter(
			cfg.Server.RateLimit.MaxRequests,
			time.Duration(cfg.Server.RateLimit.WindowMs)*time.Millisecond,
		),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	webhook := s.router.PathPrefix("/webhook/greenapi").Subrouter()
	webhook.HandleFunc("", s.handleProviderWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet)
	api.HandleFunc("/send", s.handleSend()).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.hub.HandleWebSocket).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.WithField("addr", s.server.Addr).Info("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleProviderWebhook accepts push notifications from the provider. The
// contract is acknowledge-and-own: once a payload parses, processing faults
// stay on our side and the provider sees 200, otherwise it would retry into
// the same fault. Only rate limiting and unreadable payloads get error
// statuses.
func (s *Server) handleProviderWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := httputil.GetClientIP(r)
		if !s.rateLimiter.Allow(clientIP) {
			metrics.IncrementCounter("webhook_rate_limited_total", nil, "Webhook requests rejected by rate limit")
			s.logger.WithField("remote_ip", clientIP).Warn("Webhook rate limit exceeded")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		var payload greenapi.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.logger.WithError(err).Error("Failed to decode webhook payload")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalid payload"})
			return
		}

		clinicID, err := s.channels.ClinicForInstance(strconv.FormatInt(payload.InstanceData.IDInstance, 10))
		if err != nil {
			// Not ours; acknowledge so the provider stops resending.
			s.logger.WithField("instance_id", payload.InstanceData.IDInstance).Warn("Webhook for unconfigured instance")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		if _, err := s.ingest.ProcessNotification(r.Context(), clinicID, &payload); err != nil {
			s.logger.WithError(err).WithField(service.LogFieldClinicID, clinicID).Error("Webhook processing failed")
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID := r.URL.Query().Get("clinic")
		if clinicID == "" {
			clinicID = s.channels.DefaultClinic()
		}
		runtime, ok := s.clinics[clinicID]
		if !ok {
			http.Error(w, "Unknown clinic", http.StatusNotFound)
			return
		}

		var (
			conversations []models.Conversation
			err           error
		)
		if r.URL.Query().Get("source") == "provider" {
			conversations, err = runtime.conversations.ListFromProvider(r.Context(), clinicID, s.cfg.GreenAPI.RecentWindowMinutes)
		} else {
			conversations, err = runtime.conversations.ListFromStore(r.Context(), clinicID)
		}
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldClinicID, clinicID).Error("Failed to build conversations")
			http.Error(w, "Failed to load conversations", http.StatusInternalServerError)
			return
		}

		if typeFilter := r.URL.Query().Get("type"); typeFilter != "" {
			conversations = service.FilterByType(conversations, models.ConversationType(typeFilter))
		}
		if query := r.URL.Query().Get("q"); query != "" {
			conversations = service.SearchConversations(conversations, query)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"clinicId":      clinicID,
			"conversations": conversations,
		})
	}
}

type sendRequest struct {
	ClinicID string `json:"clinicId"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	ClientID *int64 `json:"clientId,omitempty"`
	LeadID   *int64 `json:"leadId,omitempty"`
}

func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ClinicID == "" {
			req.ClinicID = s.channels.DefaultClinic()
		}
		runtime, ok := s.clinics[req.ClinicID]
		if !ok {
			http.Error(w, "Unknown clinic", http.StatusNotFound)
			return
		}

		result := runtime.sender.Send(r.Context(), req.ClinicID, req.Phone, req.Message, service.SendLink{
			ClientID: req.ClientID,
			LeadID:   req.LeadID,
		})

		status := http.StatusOK
		if !result.Success {
			status = http.StatusBadGateway
			if result.TempID == "" {
				// Rejected before any provider call: caller input problem.
				status = http.StatusBadRequest
			}
		}
		writeJSON(w, status, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
