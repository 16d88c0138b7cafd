// Package api exposes the local HTTP surface: outbound sends for the
// automation consumer, session status, and the gateway event intake.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"zapgate/internal/domain"
	"zapgate/internal/session"
)

const (
	serviceName     = "zapgate"
	maxBodyBytes    = 16 << 20 // audio payloads arrive base64-inline
	testMessageBody = "Teste do sistema de alertas - mensagem de confirmação"
)

// Deliverer executes outbound requests.
type Deliverer interface {
	Deliver(ctx context.Context, req domain.OutboundRequest) (*domain.DeliveryOutcome, error)
}

// Server is the bridge's HTTP server.
type Server struct {
	addr             string
	deliverer        Deliverer
	session          *session.Session
	defaultTestPhone string
	sendTimeout      time.Duration
	gatewayEvents    http.Handler
	metricsHandler   http.HandlerFunc
	logger           *slog.Logger
	server           *http.Server
}

type ServerConfig struct {
	Addr             string
	Deliverer        Deliverer
	Session          *session.Session
	DefaultTestPhone string
	SendTimeout      time.Duration
	GatewayEvents    http.Handler // mounted at POST /gateway/events
	MetricsHandler   http.HandlerFunc
	MetricsEndpoint  string
	Logger           *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	s := &Server{
		addr:             cfg.Addr,
		deliverer:        cfg.Deliverer,
		session:          cfg.Session,
		defaultTestPhone: cfg.DefaultTestPhone,
		sendTimeout:      cfg.SendTimeout,
		gatewayEvents:    cfg.GatewayEvents,
		metricsHandler:   cfg.MetricsHandler,
		logger:           cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send-message", s.handleSendMessage)
	mux.HandleFunc("POST /test-message", s.handleTestMessage)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatewayEvents != nil {
		mux.Handle("POST /gateway/events", s.gatewayEvents)
	}
	if s.metricsHandler != nil {
		endpoint := cfg.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.HandleFunc("GET "+endpoint, s.metricsHandler)
	}
	mux.HandleFunc("/", s.handleNotFound)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Start serves until the context is cancelled, then shuts down gracefully so
// in-flight sends can finish.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("api server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}
}

// middleware stamps every response with the hardening headers and a request
// ID for log correlation. No server-identifying header is ever set.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")

		reqID := uuid.NewString()
		s.logger.Debug("request", "id", reqID, "method", r.Method, "path", r.URL.Path)

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// sendMessageRequest is the wire shape consumed by the automation system.
type sendMessageRequest struct {
	Phone       string `json:"phone"`
	Message     string `json:"message,omitempty"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "corpo da requisição inválido",
			"details": err.Error(),
		})
		return
	}

	if req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "phone é obrigatório",
		})
		return
	}

	out := domain.OutboundRequest{
		Destination: req.Phone,
		TextMessage: req.Message,
	}
	if req.AudioBase64 != "" {
		out.Audio = &domain.AudioPayload{
			Base64:   req.AudioBase64,
			MimeType: req.MimeType,
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.sendTimeout)
	defer cancel()

	outcome, err := s.deliverer.Deliver(ctx, out)
	if err != nil {
		s.logger.Error("send failed", "phone", req.Phone, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "falha ao enviar mensagem",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      outcome.FinalStatus != domain.StatusFailed,
		"messageId":    outcome.MessageID,
		"status":       outcome.FinalStatus,
		"audioTentado": outcome.AudioAttempted,
		"audioSucesso": outcome.AudioSucceeded,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTestMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone,omitempty"`
	}
	// Body is optional for the test route.
	json.NewDecoder(r.Body).Decode(&req)

	phone := req.Phone
	if phone == "" {
		phone = s.defaultTestPhone
	}
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "nenhum número de teste configurado",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.sendTimeout)
	defer cancel()

	outcome, err := s.deliverer.Deliver(ctx, domain.OutboundRequest{
		Destination: phone,
		TextMessage: testMessageBody,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "falha no teste: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "mensagem de teste enviada",
		"messageId": outcome.MessageID,
		"phone":     phone,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()

	message := "Aguardando conexão do WhatsApp"
	if snap.Sendable {
		message = "Pronto para enviar mensagens"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  string(snap.State),
		"ready":   snap.Sendable,
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "online",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"service":       serviceName,
		"whatsAppReady": s.session.Sendable(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "rota não encontrada",
		"service": serviceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
