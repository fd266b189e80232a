package discord

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSendPostsContent(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := New(srv.URL, "squeezemon", 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := n.Send(context.Background(), "📊 digest"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(body, `"content":"📊 digest"`) || !strings.Contains(body, `"username":"squeezemon"`) {
		t.Errorf("unexpected payload %s", body)
	}
}

func TestSendFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n, _ := New(srv.URL, "", 0)
	if err := n.Send(context.Background(), "x"); err == nil {
		t.Error("expected error on 429")
	}
}

func TestSendTruncatesLongContent(t *testing.T) {
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		content = string(b)
	}))
	defer srv.Close()

	n, _ := New(srv.URL, "", 0)
	if err := n.Send(context.Background(), strings.Repeat("a", 2500)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if c := strings.Count(content, "a"); c != maxContent-1 {
		t.Errorf("expected %d chars, got %d", maxContent-1, c)
	}
	if !utf8.ValidString(content) {
		t.Error("payload is not valid utf8")
	}
}
