package dispatch

import (
	"strings"
	"testing"

	"imgseekbot/internal/platform"
)

type recordingResponder struct {
	self    string
	texts   []string
	batches [][]platform.BatchPart
}

func (r *recordingResponder) ReplyText(text string) error { r.texts = append(r.texts, text); return nil }
func (r *recordingResponder) ReplyImage([]byte) error     { return nil }
func (r *recordingResponder) ReplyEngineMenu(string, []string) error {
	return nil
}
func (r *recordingResponder) ReplyBatch(parts []platform.BatchPart) error {
	r.batches = append(r.batches, parts)
	return nil
}
func (r *recordingResponder) SelfID() string { return r.self }

func TestDeliverSingleChunkPlainReply(t *testing.T) {
	out := &recordingResponder{self: "42"}
	if err := NewDeliverer().Deliver(out, "short result"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(out.texts) != 1 || out.texts[0] != "short result" {
		t.Fatalf("expected one plain reply, got %v", out.texts)
	}
	if len(out.batches) != 0 {
		t.Fatal("single chunk must not use batch delivery")
	}
}

func TestDeliverBatchWithHeaders(t *testing.T) {
	out := &recordingResponder{self: "987654"}
	text := strings.Repeat("a", 9000)
	if err := NewDeliverer().Deliver(out, text); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(out.texts) != 0 {
		t.Fatal("multi-chunk result must not use plain replies")
	}
	if len(out.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(out.batches))
	}
	parts := out.batches[0]
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if part.SenderID != 987654 {
			t.Fatalf("part %d sender id = %d", i, part.SenderID)
		}
		if part.SenderName != "图片搜索bot" {
			t.Fatalf("part %d sender name = %q", i, part.SenderName)
		}
		if !strings.HasPrefix(part.Text, "【搜索结果 ") {
			t.Fatalf("part %d missing header: %q", i, part.Text[:20])
		}
	}
	if !strings.Contains(parts[2].Text, "3/3】") {
		t.Fatalf("last part header wrong: %q", parts[2].Text[:30])
	}
}

func TestDeliverFallbackSenderID(t *testing.T) {
	out := &recordingResponder{self: "not-a-number"}
	if err := NewDeliverer().Deliver(out, strings.Repeat("b", 4001)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(out.batches) != 1 {
		t.Fatalf("expected batch delivery")
	}
	for _, part := range out.batches[0] {
		if part.SenderID != 10000 {
			t.Fatalf("expected fallback sender id 10000, got %d", part.SenderID)
		}
	}
}
