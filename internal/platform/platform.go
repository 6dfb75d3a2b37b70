// Package platform isolates the dialog from chat-platform envelopes.
// The state machine only ever sees these capabilities and never inspects
// transport message internals directly.
package platform

// Inbound is a received chat message reduced to what the dialog needs.
type Inbound interface {
	SenderID() int64
	// Text returns the plain text of the message (or the caption of an
	// attached image), trimmed by the caller as needed.
	Text() string
	// ImageURLs lists directly fetchable URLs of images attached to the
	// message.
	ImageURLs() []string
}

// BatchPart is one sub-message of a forwarded batch. The synthetic
// sender identity keeps a long result from flooding the chat as many
// ordinary messages on platforms that support forward bundles.
type BatchPart struct {
	SenderName string
	SenderID   int64
	Text       string
}

// Responder delivers replies for the message currently being processed.
type Responder interface {
	ReplyText(text string) error
	// ReplyImage sends an image built from raw JPEG bytes.
	ReplyImage(data []byte) error
	// ReplyEngineMenu sends a prompt together with a pick-an-engine
	// control (an inline keyboard where supported).
	ReplyEngineMenu(text string, engines []string) error
	// ReplyBatch sends parts as a batch of forwarded sub-messages.
	// A failed part is reported in-chat and does not abort the rest.
	ReplyBatch(parts []BatchPart) error
	// SelfID returns the platform's own identity; it is not guaranteed
	// to be numeric.
	SelfID() string
}
