package command

import (
	"testing"

	"imgseekbot/internal/engine"
)

func mustCatalog(t *testing.T, disabled ...string) *engine.Catalog {
	t.Helper()
	c, err := engine.NewCatalog(disabled)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestStripKeyword(t *testing.T) {
	cases := []struct {
		text string
		rest string
		ok   bool
	}{
		{"以图搜图", "", true},
		{"  以图搜图 baidu  ", "baidu", true},
		{"以图搜图baidu", "baidu", true},
		{"搜图", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		rest, ok := StripKeyword(tc.text, DefaultKeyword)
		if rest != tc.rest || ok != tc.ok {
			t.Fatalf("StripKeyword(%q) = (%q, %v), want (%q, %v)", tc.text, rest, ok, tc.rest, tc.ok)
		}
	}
}

func TestParse(t *testing.T) {
	catalog := mustCatalog(t, "tineye")

	cases := []struct {
		name string
		rest string
		want Parsed
	}{
		{"empty", "", Parsed{}},
		{"engine only", "baidu", Parsed{Engine: engine.Baidu}},
		{"engine case insensitive", "GOOGLE", Parsed{Engine: engine.Google}},
		{"url only", "https://example.com/a.png", Parsed{InlineImageURL: "https://example.com/a.png"}},
		{"engine then url", "bing https://example.com/a.jpg", Parsed{Engine: engine.Bing, InlineImageURL: "https://example.com/a.jpg"}},
		{"unknown token", "yandex", Parsed{EngineToken: "yandex", EngineUnknown: true}},
		{"unknown token then url", "yandex https://example.com/a.webp", Parsed{EngineToken: "yandex", EngineUnknown: true, InlineImageURL: "https://example.com/a.webp"}},
		{"disabled engine", "TinEye", Parsed{EngineToken: "tineye", EngineDisabled: true}},
		{"third token ignored", "baidu https://example.com/a.gif extra", Parsed{Engine: engine.Baidu, InlineImageURL: "https://example.com/a.gif"}},
		{"http url is not an image url", "http://example.com/a.png", Parsed{EngineToken: "http://example.com/a.png", EngineUnknown: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.rest, catalog); got != tc.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.rest, got, tc.want)
			}
		})
	}
}

func TestIsImageURL(t *testing.T) {
	good := []string{
		"https://a.b/c.jpg",
		"https://a.b/c.JPEG",
		"https://a.b/c.png",
		"https://a.b/c.gif",
		"https://a.b/c.webp",
		"https://a.b/c.bmp",
	}
	for _, u := range good {
		if !IsImageURL(u) {
			t.Fatalf("IsImageURL(%q) = false", u)
		}
	}
	bad := []string{"http://a.b/c.jpg", "https://a.b/c.svg", "https://a.b/c", "c.jpg"}
	for _, u := range bad {
		if IsImageURL(u) {
			t.Fatalf("IsImageURL(%q) = true", u)
		}
	}
}
