package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"imgseekbot/internal/engine"
)

func TestSearchPostsMultipartForm(t *testing.T) {
	var gotEngine, gotAuth string
	var gotImage []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotEngine = r.FormValue("engine")
		gotAuth = r.Header.Get("Authorization")
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotImage, _ = io.ReadAll(file)
			_ = file.Close()
		}
		_, _ = w.Write([]byte("result text"))
	}))
	defer srv.Close()

	c := NewClientWith(ClientOptions{Endpoint: srv.URL, Token: "secret"}, srv.Client())
	text, err := c.Search(context.Background(), engine.SauceNAO, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if text != "result text" {
		t.Fatalf("result = %q", text)
	}
	if gotEngine != "saucenao" {
		t.Fatalf("engine field = %q", gotEngine)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if len(gotImage) != 2 {
		t.Fatalf("image bytes = %d", len(gotImage))
	}
}

func TestSearchNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClientWith(ClientOptions{Endpoint: srv.URL}, srv.Client())
	if _, err := c.Search(context.Background(), engine.Baidu, []byte{1}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestSearchTransportErrorIsError(t *testing.T) {
	c := NewClient(ClientOptions{Endpoint: "http://127.0.0.1:1/search"})
	if _, err := c.Search(context.Background(), engine.Bing, []byte{1}); err == nil {
		t.Fatal("expected transport error")
	}
}
