// Package render draws the result, error, and engine-intro cards that
// the bot replies with. Every exported method is total: whatever goes
// wrong internally, the caller always receives an encodable JPEG.
package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"

	"imgseekbot/internal/engine"
)

const (
	cardWidth    = 800
	margin       = 24.0
	headerHeight = 64.0
	lineHeight   = 24.0
	bodyFontSize = 16.0
	maxBodyLines = 90
	thumbSize    = 220
	jpegQuality  = 85
)

// Renderer produces annotated result images.
type Renderer struct {
	// FontPath points at a TTF used for CJK text; when empty or
	// unloadable the built-in face is used.
	FontPath string
}

// New builds a renderer using the given font file.
func New(fontPath string) *Renderer {
	return &Renderer{FontPath: fontPath}
}

// Result draws the annotated result card: engine header, a thumbnail of
// the searched image when it decodes, and the wrapped result text.
func (r *Renderer) Result(eng engine.ID, resultText string, source []byte) []byte {
	var thumb image.Image
	if im, _, err := image.Decode(bytes.NewReader(source)); err == nil {
		thumb = resize.Thumbnail(thumbSize, thumbSize, im, resize.Lanczos3)
	}
	return r.card("搜索引擎: "+string(eng), 0.16, 0.38, 0.61, thumb, resultText)
}

// Error draws a best-effort failure card.
func (r *Renderer) Error(eng engine.ID, message string) []byte {
	return r.card("搜索失败: "+string(eng), 0.70, 0.17, 0.17, nil, message)
}

// Intro draws the engine catalog card shown when prompting for an engine.
func (r *Renderer) Intro(enabled []engine.ID) []byte {
	var b strings.Builder
	b.WriteString("用法: 以图搜图 [引擎名] [图片URL]\n\n可用引擎:\n")
	for _, id := range enabled {
		b.WriteString("· ")
		b.WriteString(string(id))
		b.WriteString("\n")
	}
	return r.card("以图搜图", 0.16, 0.38, 0.61, nil, b.String())
}

func (r *Renderer) loadFont(dc *gg.Context, size float64) {
	if r.FontPath == "" {
		return
	}
	// Falls back to the built-in face when the font cannot be loaded.
	_ = dc.LoadFontFace(r.FontPath, size)
}

func (r *Renderer) card(title string, hr, hg, hb float64, thumb image.Image, body string) []byte {
	textWidth := float64(cardWidth) - 2*margin

	// Measure with a throwaway context so the canvas height fits the text.
	probe := gg.NewContext(cardWidth, 1)
	r.loadFont(probe, bodyFontSize)
	lines := wrapBody(probe, body, textWidth)

	thumbHeight := 0.0
	if thumb != nil {
		thumbHeight = float64(thumb.Bounds().Dy()) + margin
	}
	height := int(headerHeight + margin + thumbHeight + float64(len(lines))*lineHeight + margin)

	dc := gg.NewContext(cardWidth, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(hr, hg, hb)
	dc.DrawRectangle(0, 0, cardWidth, headerHeight)
	dc.Fill()

	r.loadFont(dc, bodyFontSize+6)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(title, margin, headerHeight/2, 0, 0.5)

	y := headerHeight + margin
	if thumb != nil {
		dc.DrawImage(thumb, int(margin), int(y))
		y += thumbHeight
	}

	r.loadFont(dc, bodyFontSize)
	dc.SetRGB(0.13, 0.14, 0.2)
	for _, line := range lines {
		dc.DrawStringAnchored(line, margin, y, 0, 0.5)
		y += lineHeight
	}

	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: jpegQuality})
	return buf.Bytes()
}

func wrapBody(dc *gg.Context, body string, width float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(body, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, dc.WordWrap(paragraph, width)...)
	}
	if len(lines) > maxBodyLines {
		lines = append(lines[:maxBodyLines], "……")
	}
	return lines
}
