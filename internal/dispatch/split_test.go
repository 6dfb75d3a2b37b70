package dispatch

import (
	"strings"
	"testing"
)

func TestSplitByLengthShortTextUnsplit(t *testing.T) {
	text := strings.Repeat("a", 3999)
	parts := SplitByLength(text, 4000)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("expected single unsplit chunk, got %d parts", len(parts))
	}

	exact := strings.Repeat("a", 4000)
	if parts := SplitByLength(exact, 4000); len(parts) != 1 {
		t.Fatalf("text of exactly maxLength must stay unsplit, got %d parts", len(parts))
	}
}

func TestSplitByLengthCutsAfterSeparator(t *testing.T) {
	half := strings.Repeat("x", 2000)
	text := half + separator + half
	parts := SplitByLength(text, 4000)

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if !strings.HasSuffix(parts[0], separator) {
		t.Fatal("first chunk must end right after the 50-dash run")
	}
	if strings.Contains(parts[1], "-") {
		t.Fatal("dash run must not leak into the second chunk")
	}
	if parts[0]+parts[1] != text {
		t.Fatal("concatenated parts must reproduce the input")
	}
}

func TestSplitByLengthIgnoresSeparatorBeforeMidpoint(t *testing.T) {
	// The run sits in the first quarter, so the greedy cut applies.
	text := strings.Repeat("x", 500) + separator + strings.Repeat("y", 5000)
	parts := SplitByLength(text, 4000)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len([]rune(parts[0])) != 4000 {
		t.Fatalf("first chunk length = %d, want 4000 (greedy cut)", len([]rune(parts[0])))
	}
}

func TestSplitByLengthCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("搜", 4500)
	parts := SplitByLength(text, 4000)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if n := len([]rune(parts[0])); n != 4000 {
		t.Fatalf("first chunk rune count = %d, want 4000", n)
	}
	if n := len([]rune(parts[1])); n != 500 {
		t.Fatalf("second chunk rune count = %d, want 500", n)
	}
}

func TestSplitByLengthIterates(t *testing.T) {
	text := strings.Repeat("z", 10_500)
	parts := SplitByLength(text, 4000)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	var total int
	for _, p := range parts {
		total += len(p)
	}
	if total != len(text) {
		t.Fatalf("parts lose content: %d != %d", total, len(text))
	}
}
