// Package gateway adapts a whatsapp-web sidecar gateway into the chat-network
// capability: REST calls out for sends and media downloads, a webhook
// receiver in for session and message events. The gateway owns the protocol
// session and persists its auth material between restarts.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"zapgate/internal/domain"
)

const maxDownloadBytes = 32 << 20 // 32MB

// Client implements domain.Client against the gateway's REST API.
type Client struct {
	baseURL string
	apiKey  string
	session string
	http    *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Session string
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		session: cfg.Session,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  cfg.Logger,
	}
}

func (c *Client) endpoint(parts ...string) string {
	u := c.baseURL + "/api/" + url.PathEscape(c.session)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to string, text string) (*domain.SendResult, error) {
	return c.postSend(ctx, c.endpoint("send-text"), map[string]any{
		"to":   to,
		"text": text,
	})
}

// SendMedia sends raw media bytes with the given delivery options. The
// gateway takes the payload base64-encoded.
func (c *Client) SendMedia(ctx context.Context, to string, data []byte, opts domain.SendOptions) (*domain.SendResult, error) {
	return c.postSend(ctx, c.endpoint("send-media"), map[string]any{
		"to":         to,
		"dataBase64": base64.StdEncoding.EncodeToString(data),
		"mimeType":   opts.MimeType,
		"asVoice":    opts.AsVoice,
		"filename":   opts.Filename,
	})
}

// postSend issues one send call. Sends are deliberately not retried at the
// HTTP layer: the caller's cascade is the retry policy, and a blind retry
// here could deliver the same message twice.
func (c *Client) postSend(ctx context.Context, endpoint string, payload map[string]any) (*domain.SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &domain.SendResult{MessageID: result.ID}, nil
}

// DownloadMedia fetches a media attachment. Transient gateway failures are
// retried with backoff; downloads are idempotent.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	endpoint := c.endpoint("media", url.PathEscape(mediaID))

	resp, err := doWithRetry(ctx, c.http, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	}, c.logger)
	if err != nil {
		return nil, "", fmt.Errorf("download media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("gateway %d: %s", resp.StatusCode, string(respBody))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
