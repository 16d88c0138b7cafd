// Package outbound executes outbound deliveries against the chat-network
// send capability. Audio goes through an ordered cascade of encodings and
// options, degrading to a text notice when every strategy fails.
package outbound

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zapgate/internal/domain"
	"zapgate/internal/metrics"
)

// ErrSessionNotReady is returned when a send is attempted before the
// session is authenticated and connected. Never retried automatically.
var ErrSessionNotReady = errors.New("sessão não está pronta, aguarde a conexão do WhatsApp")

const (
	// The network's fixed address suffix for individual contacts.
	addressSuffix = "@c.us"

	// The network's native voice-note container.
	nativeAudioMime = "audio/ogg; codecs=opus"

	audioIconPrefix = "🎵 "
	defaultAudioAck = "Mensagem de áudio"
	audioApology    = " (Desculpe, tivemos um problema temporário no envio do áudio.)"
)

// strategy is one entry in the audio delivery cascade. An empty mimeOverride
// keeps the caller-supplied MIME type. Different combinations succeed under
// different, not fully predictable platform conditions.
type strategy struct {
	mimeOverride string
	asVoice      bool
}

var audioCascade = []strategy{
	{mimeOverride: "", asVoice: true},
	{mimeOverride: "", asVoice: false},
	{mimeOverride: nativeAudioMime, asVoice: true},
	{mimeOverride: nativeAudioMime, asVoice: false},
}

// readiness gates sends on the session state.
type readiness interface {
	Sendable() bool
}

// Deliverer executes OutboundRequests. Sends are serialized globally: the
// underlying transport gives no guarantee about concurrent calls.
type Deliverer struct {
	client  domain.Client
	session readiness
	logger  *slog.Logger
	mu      sync.Mutex
}

func New(client domain.Client, session readiness, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		client:  client,
		session: session,
		logger:  logger,
	}
}

// NormalizeDestination strips every non-digit character and appends the
// network's address suffix. Applied identically before every attempt.
func NormalizeDestination(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + addressSuffix
}

// Deliver sends the request and reports what happened. The returned error is
// non-nil only for ErrSessionNotReady and for a final send failure; a failed
// audio cascade that falls back to text successfully is not an error.
func (d *Deliverer) Deliver(ctx context.Context, req domain.OutboundRequest) (*domain.DeliveryOutcome, error) {
	if !d.session.Sendable() {
		return nil, ErrSessionNotReady
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() { metrics.SendLatency.Observe(time.Since(start).Seconds()) }()

	dest := NormalizeDestination(req.Destination)
	outcome := &domain.DeliveryOutcome{FinalStatus: domain.StatusFailed}

	if req.Audio != nil {
		err := d.deliverAudio(ctx, dest, req, outcome)
		d.count(outcome)
		return outcome, err
	}

	if req.TextMessage != "" {
		res, err := d.client.SendText(ctx, dest, req.TextMessage)
		if err != nil {
			d.count(outcome)
			return outcome, fmt.Errorf("falha ao enviar mensagem: %w", err)
		}
		outcome.FinalStatus = domain.StatusTextSent
		outcome.MessageID = res.MessageID
		d.count(outcome)
		return outcome, nil
	}

	// Neither text nor audio: a definite no-op outcome, zero network calls.
	d.logger.Warn("delivery request without message or audio", "to", dest)
	d.count(outcome)
	return outcome, nil
}

// deliverAudio runs the cascade and, on total failure, the text fallback.
func (d *Deliverer) deliverAudio(ctx context.Context, dest string, req domain.OutboundRequest, outcome *domain.DeliveryOutcome) error {
	outcome.AudioAttempted = true

	data, decodeErr := decodeAudio(req.Audio.Base64)
	if decodeErr != nil {
		d.logger.Warn("audio payload not decodable, skipping cascade", "to", dest, "err", decodeErr)
	} else {
		for i, st := range audioCascade {
			metrics.CascadeAttempts.Inc()

			mimeType := req.Audio.MimeType
			if st.mimeOverride != "" {
				mimeType = st.mimeOverride
			}
			if mimeType == "" {
				mimeType = nativeAudioMime
			}

			// Fresh options per attempt; the previous failure must not leak in.
			res, err := d.client.SendMedia(ctx, dest, data, domain.SendOptions{
				MimeType: mimeType,
				AsVoice:  st.asVoice,
				Filename: "voice" + audioExt(mimeType),
			})
			if err == nil {
				outcome.AudioSucceeded = true
				outcome.FinalStatus = domain.StatusAudioSent
				outcome.MessageID = res.MessageID
				if i > 0 {
					d.logger.Info("audio sent via fallback strategy", "to", dest, "attempt", i+1)
				}
				return nil
			}
			d.logger.Warn("audio strategy failed, trying next",
				"to", dest, "attempt", i+1, "mime", mimeType, "voice", st.asVoice, "err", err)
		}
	}

	// Cascade exhausted: degrade to a text notice so the recipient still
	// learns a message was meant for them.
	text := req.TextMessage
	if text == "" {
		text = defaultAudioAck
	}
	fallback := audioIconPrefix + text + audioApology

	res, err := d.client.SendText(ctx, dest, fallback)
	if err != nil {
		return fmt.Errorf("falha ao enviar mensagem: %w", err)
	}
	outcome.FinalStatus = domain.StatusTextSent
	outcome.MessageID = res.MessageID
	return nil
}

func (d *Deliverer) count(outcome *domain.DeliveryOutcome) {
	switch outcome.FinalStatus {
	case domain.StatusAudioSent:
		metrics.AudioSendsTotal.Inc()
	case domain.StatusTextSent:
		metrics.TextSendsTotal.Inc()
	default:
		metrics.FailedSendsTotal.Inc()
	}
}

// decodeAudio strips any data-URI prefix ("data:audio/ogg;base64,...") and
// decodes the payload once; every cascade attempt reuses the same bytes.
func decodeAudio(b64 string) ([]byte, error) {
	if idx := strings.Index(b64, "base64,"); strings.HasPrefix(b64, "data:") && idx >= 0 {
		b64 = b64[idx+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
}

func audioExt(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	default:
		return ".ogg"
	}
}
