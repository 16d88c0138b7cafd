package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"zapgate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRelay_PostsFullPayload(t *testing.T) {
	var received domain.RelayPayload
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rel := New(Config{URL: srv.URL, UserAgent: "zapgate/test", Timeout: 5 * time.Second, Logger: testLogger()})
	rel.Relay(context.Background(), &domain.RelayPayload{
		Sender:      "5562992767536@c.us",
		MessageKind: domain.KindAudio,
		HasMedia:    true,
		Body:        "[AUDIO]",
		AudioData: &domain.AudioData{
			Base64:   "b2dn",
			MimeType: "audio/ogg; codecs=opus",
			ByteSize: 3,
			Filename: "voice-20260314-150926.ogg",
		},
		Timestamp: "2026-03-14T15:09:26Z",
	})

	if received.Sender != "5562992767536@c.us" {
		t.Errorf("sender not relayed: %q", received.Sender)
	}
	if received.AudioData == nil || received.AudioData.Base64 != "b2dn" {
		t.Error("audio data not included in relay body")
	}
	if userAgent != "zapgate/test" {
		t.Errorf("expected bot user agent, got %q", userAgent)
	}
}

func TestRelay_SwallowsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rel := New(Config{URL: srv.URL, UserAgent: "zapgate/test", Logger: testLogger()})
	// Must not panic or propagate anything.
	rel.Relay(context.Background(), &domain.RelayPayload{Sender: "1@c.us", MessageKind: domain.KindText})
}

func TestRelay_SwallowsConnectionError(t *testing.T) {
	rel := New(Config{URL: "http://127.0.0.1:1", UserAgent: "zapgate/test", Timeout: time.Second, Logger: testLogger()})
	rel.Relay(context.Background(), &domain.RelayPayload{Sender: "1@c.us", MessageKind: domain.KindText})
}

func TestRelay_DisabledWithoutURL(t *testing.T) {
	rel := New(Config{Logger: testLogger()})
	if rel.Enabled() {
		t.Fatal("relay without URL must report disabled")
	}
	rel.Relay(context.Background(), &domain.RelayPayload{Sender: "1@c.us"})
}
