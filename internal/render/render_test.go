package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"imgseekbot/internal/engine"
)

func decodeCard(t *testing.T, data []byte) image.Image {
	t.Helper()
	im, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("card is not a decodable JPEG: %v", err)
	}
	return im
}

func TestResultCardWithThumbnail(t *testing.T) {
	var src bytes.Buffer
	if err := png.Encode(&src, image.NewRGBA(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatal(err)
	}

	r := New("")
	card := r.Result(engine.Baidu, "line one\nline two", src.Bytes())
	im := decodeCard(t, card)
	if im.Bounds().Dx() != cardWidth {
		t.Fatalf("width = %d, want %d", im.Bounds().Dx(), cardWidth)
	}
}

func TestResultCardWithUndecodableSource(t *testing.T) {
	r := New("")
	card := r.Result(engine.Google, "still renders", []byte("not an image"))
	decodeCard(t, card)
}

func TestErrorCard(t *testing.T) {
	r := New("")
	decodeCard(t, r.Error(engine.SauceNAO, "upstream timed out"))
}

func TestIntroCard(t *testing.T) {
	r := New("missing-font.ttf")
	decodeCard(t, r.Intro(engine.All))
}

func TestLongBodyIsClamped(t *testing.T) {
	r := New("")
	body := strings.Repeat("段落\n", maxBodyLines*2)
	card := r.Result(engine.Bing, body, nil)
	im := decodeCard(t, card)

	maxHeight := int(headerHeight+2*margin) + (maxBodyLines+1)*int(lineHeight) + int(lineHeight)
	if im.Bounds().Dy() > maxHeight {
		t.Fatalf("height = %d exceeds clamp bound %d", im.Bounds().Dy(), maxHeight)
	}
}
