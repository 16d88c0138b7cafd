package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"zapgate/internal/domain"
)

func newTestClient(srvURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL: srvURL,
		APIKey:  "test-key",
		Session: "main",
		Logger:  testLogger(),
	})
}

func TestClient_SendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "wamid.123"})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SendText(context.Background(), "5562992767536@c.us", "olá")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MessageID != "wamid.123" {
		t.Errorf("message id not parsed: %q", res.MessageID)
	}
	if gotPath != "/api/main/send-text" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("missing bearer auth: %q", gotAuth)
	}
	if gotBody["to"] != "5562992767536@c.us" || gotBody["text"] != "olá" {
		t.Errorf("unexpected body: %v", gotBody)
	}
}

func TestClient_SendMedia(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "wamid.456"})
	}))
	defer srv.Close()

	data := []byte("opus")
	_, err := newTestClient(srv.URL).SendMedia(context.Background(), "1@c.us", data, domain.SendOptions{
		MimeType: "audio/ogg; codecs=opus",
		AsVoice:  true,
		Filename: "voice.ogg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["dataBase64"] != base64.StdEncoding.EncodeToString(data) {
		t.Error("media bytes not base64-encoded in request")
	}
	if gotBody["asVoice"] != true {
		t.Error("asVoice flag not forwarded")
	}
	if gotBody["mimeType"] != "audio/ogg; codecs=opus" {
		t.Errorf("mime type not forwarded: %v", gotBody["mimeType"])
	}
}

func TestClient_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "number not on whatsapp", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendText(context.Background(), "1@c.us", "x")
	if err == nil {
		t.Fatal("expected error for non-2xx send")
	}
}

func TestClient_DownloadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/main/media/media-9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/ogg; codecs=opus")
		w.Write([]byte("voice-bytes"))
	}))
	defer srv.Close()

	data, mimeType, err := newTestClient(srv.URL).DownloadMedia(context.Background(), "media-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "voice-bytes" {
		t.Errorf("unexpected data %q", data)
	}
	if mimeType != "audio/ogg; codecs=opus" {
		t.Errorf("unexpected mime %q", mimeType)
	}
}

func TestClient_DownloadMediaRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	data, _, err := newTestClient(srv.URL).DownloadMedia(context.Background(), "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("unexpected data %q", data)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (1 retry), got %d", calls)
	}
}

func TestClient_DownloadMediaNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).DownloadMedia(context.Background(), "m")
	if err == nil {
		t.Fatal("expected error for 404")
	}
}
