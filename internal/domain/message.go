package domain

import "time"

// MessageKind classifies an inbound message for the relay consumer.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindAudio      MessageKind = "audio"
	KindOtherMedia MessageKind = "otherMedia"
)

// MessageEvent is a raw inbound message as reported by the gateway.
type MessageEvent struct {
	ID              string
	Sender          string // full network address, e.g. "5562...@c.us"
	Type            string // gateway media type: "chat", "ptt", "audio", "image", ...
	Body            string
	HasMedia        bool
	MediaID         string
	DurationSeconds int       // reported for voice notes, 0 when unknown
	Timestamp       time.Time // platform timestamp (informational only)
}

// AudioData carries a fully materialized voice note inside a relay payload.
type AudioData struct {
	Base64          string `json:"base64"`
	MimeType        string `json:"mimeType"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	ByteSize        int    `json:"byteSize"`
	Filename        string `json:"filename"`
}

// RelayPayload is the normalized record forwarded to the webhook consumer
// for every qualifying inbound message. Constructed once per event, relayed
// once, then discarded.
type RelayPayload struct {
	Sender      string      `json:"sender"`
	MessageKind MessageKind `json:"messageKind"`
	HasMedia    bool        `json:"hasMedia"`
	Body        string      `json:"body"`
	AudioData   *AudioData  `json:"audioData,omitempty"`
	AudioError  string      `json:"audioError,omitempty"`
	Timestamp   string      `json:"timestamp"` // relay-time clock, ISO-8601
}

// AudioPayload is caller-supplied audio for an outbound send. The base64
// string may carry a data-URI prefix, which is stripped before delivery.
type AudioPayload struct {
	Base64   string
	MimeType string
}

// OutboundRequest asks for one message (text, audio, or both) to be sent to
// a raw phone-number-like destination.
type OutboundRequest struct {
	Destination string
	TextMessage string
	Audio       *AudioPayload
}

// FinalStatus is the terminal state of an outbound delivery.
type FinalStatus string

const (
	StatusAudioSent FinalStatus = "audio_sent"
	StatusTextSent  FinalStatus = "text_sent"
	StatusFailed    FinalStatus = "failed"
)

// DeliveryOutcome reports what actually happened for one OutboundRequest.
type DeliveryOutcome struct {
	AudioAttempted bool
	AudioSucceeded bool
	FinalStatus    FinalStatus
	MessageID      string
}
