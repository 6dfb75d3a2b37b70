package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"imgseekbot/internal/platform"
)

const (
	// fallbackSenderID labels batch parts when the platform's own
	// identifier is not integer-convertible.
	fallbackSenderID = int64(10000)

	defaultSenderName = "图片搜索bot"
)

// Deliverer paginates a text result and sends it as either a single
// plain reply or a batch of forwarded sub-messages.
type Deliverer struct {
	SenderName string
}

// NewDeliverer builds a deliverer with the default sender label.
func NewDeliverer() *Deliverer {
	return &Deliverer{SenderName: defaultSenderName}
}

// Deliver splits text per the 4000-character rule and sends it. One
// chunk goes out as a plain reply; several go out as a forwarded batch
// with part headers so the chat is not flooded with ordinary messages.
func (d *Deliverer) Deliver(out platform.Responder, text string) error {
	parts := SplitByLength(text, MaxChunkLen)
	if len(parts) == 1 {
		return out.ReplyText(parts[0])
	}

	senderID := fallbackSenderID
	if id, err := strconv.ParseInt(strings.TrimSpace(out.SelfID()), 10, 64); err == nil {
		senderID = id
	}

	batch := make([]platform.BatchPart, len(parts))
	for i, part := range parts {
		batch[i] = platform.BatchPart{
			SenderName: d.SenderName,
			SenderID:   senderID,
			Text:       fmt.Sprintf("【搜索结果 %d/%d】\n%s", i+1, len(parts), part),
		}
	}
	return out.ReplyBatch(batch)
}
