package domain

import "context"

// SendOptions control how a media payload is delivered.
type SendOptions struct {
	MimeType string
	AsVoice  bool // deliver as an inline voice note instead of a file attachment
	Filename string
}

// SendResult is returned by the network for a successful send.
type SendResult struct {
	MessageID string
}

// Client is the chat-network capability: the opaque component holding the
// actual protocol connection. Its wire protocol is out of scope here; the
// bridge only consumes send and download operations. Event intake happens
// through the gateway receiver, not through this interface.
type Client interface {
	SendText(ctx context.Context, to string, text string) (*SendResult, error)
	SendMedia(ctx context.Context, to string, data []byte, opts SendOptions) (*SendResult, error)
	// DownloadMedia fetches the raw bytes of a media attachment and reports
	// the MIME type the gateway declared for it.
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}
