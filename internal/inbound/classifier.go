// Package inbound turns raw gateway message events into normalized relay
// payloads. Classification never fails outward: every internal error is
// folded into the payload so the consumer is not silently missing data.
package inbound

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"zapgate/internal/domain"
	"zapgate/internal/metrics"
)

const (
	// Voice notes arrive in the network's default container.
	defaultAudioMime = "audio/ogg; codecs=opus"

	audioBody            = "[AUDIO]"
	audioUnavailableBody = "[AUDIO INDISPONÍVEL]"
)

// Classifier builds RelayPayloads from MessageEvents, materializing audio
// through the client's media-download capability.
type Classifier struct {
	client domain.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewClassifier(client domain.Client, logger *slog.Logger) *Classifier {
	return &Classifier{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Classify produces exactly one RelayPayload for a qualifying event, or
// ok=false when the event is filtered out entirely. It does not return
// errors: a failed audio download downgrades the payload instead.
func (c *Classifier) Classify(ctx context.Context, evt domain.MessageEvent) (*domain.RelayPayload, bool) {
	// Group and broadcast traffic must never reach the consumer: relaying
	// status updates would corrupt downstream automation state.
	if isGroupOrBroadcast(evt.Sender) {
		metrics.InboundFiltered.Inc()
		c.logger.Debug("inbound event filtered", "sender", evt.Sender)
		return nil, false
	}

	payload := &domain.RelayPayload{
		Sender:      evt.Sender,
		MessageKind: classifyKind(evt),
		HasMedia:    evt.HasMedia,
		// Consumers key on relay time, not the platform's origination time.
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}

	switch payload.MessageKind {
	case domain.KindAudio:
		c.materializeAudio(ctx, evt, payload)
	case domain.KindOtherMedia:
		// Only audio is fully materialized; everything else gets a marker.
		payload.Body = "[" + strings.ToUpper(evt.Type) + "]"
	default:
		payload.Body = evt.Body
	}

	return payload, true
}

// materializeAudio downloads the voice note and embeds it base64-encoded.
// Download failure keeps the event relayable with an error marker.
func (c *Classifier) materializeAudio(ctx context.Context, evt domain.MessageEvent, payload *domain.RelayPayload) {
	data, mimeType, err := c.client.DownloadMedia(ctx, evt.MediaID)
	if err != nil {
		metrics.MediaFailures.Inc()
		c.logger.Warn("audio download failed", "sender", evt.Sender, "media", evt.MediaID, "err", err)
		payload.Body = audioUnavailableBody
		payload.AudioError = err.Error()
		return
	}

	if mimeType == "" {
		mimeType = defaultAudioMime
	}

	payload.Body = audioBody
	payload.AudioData = &domain.AudioData{
		Base64:          base64.StdEncoding.EncodeToString(data),
		MimeType:        mimeType,
		DurationSeconds: evt.DurationSeconds,
		ByteSize:        len(data),
		Filename:        "voice-" + c.now().Format("20060102-150405") + ".ogg",
	}
}

// isGroupOrBroadcast reports whether the sender is a group channel or a
// broadcast/status channel.
func isGroupOrBroadcast(sender string) bool {
	return strings.HasSuffix(sender, "@g.us") || strings.HasSuffix(sender, "@broadcast")
}

// classifyKind maps the gateway's declared media type onto a message kind.
func classifyKind(evt domain.MessageEvent) domain.MessageKind {
	switch evt.Type {
	case "ptt", "audio":
		return domain.KindAudio
	}
	if evt.HasMedia && evt.Type != "chat" && evt.Type != "" {
		return domain.KindOtherMedia
	}
	return domain.KindText
}
