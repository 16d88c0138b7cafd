// Package relay delivers relay payloads to the configured webhook consumer.
// Delivery is best-effort: a slow or broken consumer must never stall or
// crash the inbound event loop, so every failure is logged and swallowed.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zapgate/internal/domain"
	"zapgate/internal/metrics"
)

// Relay posts payloads to one external HTTP endpoint. No retry, no queue:
// a dropped relay is accepted data loss, but it is counted.
type Relay struct {
	url       string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func New(cfg Config) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Relay{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger,
	}
}

// Enabled reports whether a webhook endpoint is configured.
func (r *Relay) Enabled() bool { return r.url != "" }

// Relay issues a single POST of the full payload, audio included. Errors
// never propagate to the caller.
func (r *Relay) Relay(ctx context.Context, payload *domain.RelayPayload) {
	if r.url == "" {
		return
	}

	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		metrics.RelayFailures.Inc()
		r.logger.Error("relay marshal failed", "sender", payload.Sender, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		metrics.RelayFailures.Inc()
		r.logger.Error("relay build request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RelayFailures.Inc()
		r.logger.Warn("relay delivery failed", "sender", payload.Sender, "err", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	metrics.RelayLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RelayFailures.Inc()
		r.logger.Warn("relay rejected by consumer", "sender", payload.Sender, "status", resp.StatusCode)
		return
	}

	metrics.RelaysTotal.Inc()
	r.logger.Info("message relayed", "sender", payload.Sender, "kind", payload.MessageKind)
}
