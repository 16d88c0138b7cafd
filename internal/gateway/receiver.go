package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zapgate/internal/bus"
	"zapgate/internal/domain"
	"zapgate/internal/session"
)

const maxEventBytes = 1 << 20 // 1MB

// Receiver is the single intake point for gateway events. Session events
// drive the state machine directly; message events go onto the inbound
// queue. Exactly one receiver exists per process, so every message enters
// the pipeline exactly once.
type Receiver struct {
	secret      string
	session     *session.Session
	queue       *bus.Queue
	onChallenge func(data string)
	logger      *slog.Logger
}

type ReceiverConfig struct {
	Secret  string // HMAC secret; empty disables signature verification
	Session *session.Session
	Queue   *bus.Queue
	// OnChallenge surfaces login challenge data to the operator
	// (e.g. terminal QR rendering). Optional.
	OnChallenge func(data string)
	Logger      *slog.Logger
}

func NewReceiver(cfg ReceiverConfig) *Receiver {
	return &Receiver{
		secret:      cfg.Secret,
		session:     cfg.Session,
		queue:       cfg.Queue,
		onChallenge: cfg.OnChallenge,
		logger:      cfg.Logger,
	}
}

// eventEnvelope is the gateway's webhook body.
type eventEnvelope struct {
	Event   string        `json:"event"` // qr | ready | disconnected | message
	QR      string        `json:"qr,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Message *messageEvent `json:"message,omitempty"`
}

type messageEvent struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Type      string `json:"type"`
	Body      string `json:"body"`
	HasMedia  bool   `json:"hasMedia"`
	MediaID   string `json:"mediaId,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds
}

func (r *Receiver) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxEventBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	if r.secret != "" {
		sig := req.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, r.secret, sig) {
			r.logger.Warn("gateway event with invalid signature")
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	switch env.Event {
	case "qr":
		r.session.OnChallenge(env.QR)
		if r.onChallenge != nil {
			r.onChallenge(env.QR)
		}
	case "ready":
		r.session.OnReady()
	case "disconnected":
		r.session.OnDisconnected(env.Reason)
	case "message":
		if env.Message == nil {
			http.Error(rw, "Missing message", http.StatusBadRequest)
			return
		}
		r.queue.Publish(domain.MessageEvent{
			ID:              env.Message.ID,
			Sender:          env.Message.From,
			Type:            env.Message.Type,
			Body:            env.Message.Body,
			HasMedia:        env.Message.HasMedia,
			MediaID:         env.Message.MediaID,
			DurationSeconds: env.Message.Duration,
			Timestamp:       time.Unix(env.Message.Timestamp, 0),
		})
	default:
		r.logger.Debug("ignoring unknown gateway event", "event", env.Event)
	}

	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{"status": "accepted"})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
