package inbound

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"zapgate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClient implements domain.Client for classifier tests.
type fakeClient struct {
	mediaData []byte
	mediaMime string
	mediaErr  error
	downloads int
}

func (f *fakeClient) SendText(ctx context.Context, to, text string) (*domain.SendResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) SendMedia(ctx context.Context, to string, data []byte, opts domain.SendOptions) (*domain.SendResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	f.downloads++
	if f.mediaErr != nil {
		return nil, "", f.mediaErr
	}
	return f.mediaData, f.mediaMime, nil
}

func newTestClassifier(client domain.Client) *Classifier {
	c := NewClassifier(client, testLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }
	return c
}

func TestClassify_FiltersGroups(t *testing.T) {
	fc := &fakeClient{}
	c := newTestClassifier(fc)

	_, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender: "120363041234567890@g.us",
		Type:   "chat",
		Body:   "group chatter",
	})
	if ok {
		t.Fatal("group events must be filtered")
	}
	if fc.downloads != 0 {
		t.Fatal("filtered events must not touch the network")
	}
}

func TestClassify_FiltersStatusBroadcast(t *testing.T) {
	c := newTestClassifier(&fakeClient{})

	_, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender: "status@broadcast",
		Type:   "image",
	})
	if ok {
		t.Fatal("status broadcast events must be filtered")
	}
}

func TestClassify_Text(t *testing.T) {
	c := newTestClassifier(&fakeClient{})

	payload, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender: "5562992767536@c.us",
		Type:   "chat",
		Body:   "olá",
	})
	if !ok {
		t.Fatal("text event must produce a payload")
	}
	if payload.MessageKind != domain.KindText {
		t.Errorf("expected text kind, got %s", payload.MessageKind)
	}
	if payload.Body != "olá" {
		t.Errorf("expected literal body, got %q", payload.Body)
	}
	if payload.AudioData != nil {
		t.Error("text payload must not carry audio data")
	}
	if payload.Timestamp != "2026-03-14T15:09:26Z" {
		t.Errorf("expected relay-clock timestamp, got %q", payload.Timestamp)
	}
}

func TestClassify_OtherMediaPlaceholder(t *testing.T) {
	fc := &fakeClient{}
	c := newTestClassifier(fc)

	payload, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender:   "5562992767536@c.us",
		Type:     "image",
		HasMedia: true,
	})
	if !ok {
		t.Fatal("media event must produce a payload")
	}
	if payload.MessageKind != domain.KindOtherMedia {
		t.Errorf("expected otherMedia, got %s", payload.MessageKind)
	}
	if payload.Body != "[IMAGE]" {
		t.Errorf("expected uppercased placeholder, got %q", payload.Body)
	}
	if fc.downloads != 0 {
		t.Error("non-audio media must not be downloaded")
	}
}

func TestClassify_AudioRoundTrips(t *testing.T) {
	raw := []byte{0x4f, 0x67, 0x67, 0x53, 0x00, 0x01, 0x02, 0xff}
	fc := &fakeClient{mediaData: raw, mediaMime: "audio/ogg; codecs=opus"}
	c := newTestClassifier(fc)

	payload, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender:          "5562992767536@c.us",
		Type:            "ptt",
		HasMedia:        true,
		MediaID:         "media-1",
		DurationSeconds: 7,
	})
	if !ok {
		t.Fatal("audio event must produce a payload")
	}
	if payload.MessageKind != domain.KindAudio {
		t.Fatalf("expected audio kind, got %s", payload.MessageKind)
	}
	if payload.AudioData == nil {
		t.Fatal("successful extraction must populate audioData")
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.AudioData.Base64)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Error("base64 must round-trip the downloaded bytes")
	}
	if payload.AudioData.ByteSize != len(raw) {
		t.Errorf("expected byteSize %d, got %d", len(raw), payload.AudioData.ByteSize)
	}
	if payload.AudioData.DurationSeconds != 7 {
		t.Errorf("expected duration 7, got %d", payload.AudioData.DurationSeconds)
	}
	if !strings.HasSuffix(payload.AudioData.Filename, ".ogg") {
		t.Errorf("expected .ogg filename, got %q", payload.AudioData.Filename)
	}
	if payload.AudioData.MimeType != "audio/ogg; codecs=opus" {
		t.Errorf("unexpected mime type %q", payload.AudioData.MimeType)
	}
}

func TestClassify_AudioDownloadFailureStillRelays(t *testing.T) {
	fc := &fakeClient{mediaErr: errors.New("media server unreachable")}
	c := newTestClassifier(fc)

	payload, ok := c.Classify(context.Background(), domain.MessageEvent{
		Sender:   "5562992767536@c.us",
		Type:     "audio",
		HasMedia: true,
		MediaID:  "media-2",
	})
	if !ok {
		t.Fatal("failed extraction must still produce a payload")
	}
	if payload.AudioData != nil {
		t.Error("failed extraction must not populate audioData")
	}
	if payload.Body != audioUnavailableBody {
		t.Errorf("expected error-marker body, got %q", payload.Body)
	}
	if payload.AudioError != "media server unreachable" {
		t.Errorf("expected audioError detail, got %q", payload.AudioError)
	}
}

func TestClassify_AudioMimeFallback(t *testing.T) {
	fc := &fakeClient{mediaData: []byte("x"), mediaMime: ""}
	c := newTestClassifier(fc)

	payload, _ := c.Classify(context.Background(), domain.MessageEvent{
		Sender:   "1@c.us",
		Type:     "ptt",
		HasMedia: true,
	})
	if payload.AudioData.MimeType != defaultAudioMime {
		t.Errorf("expected default mime, got %q", payload.AudioData.MimeType)
	}
}
