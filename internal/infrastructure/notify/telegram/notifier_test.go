package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestSendPostsForm(t *testing.T) {
	var gotChat, gotText, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	n, err := New(Config{APIBase: srv.URL, BotToken: "123:abc", ChatID: "-100200"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := n.Send(context.Background(), "🚨 squeeze BTCUSDT"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotChat != "-100200" || gotText != "🚨 squeeze BTCUSDT" {
		t.Errorf("unexpected form chat=%q text=%q", gotChat, gotText)
	}
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n, _ := New(Config{APIBase: srv.URL, BotToken: "t", ChatID: "c"})
	err := n.Send(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected description in error, got %v", err)
	}
}

func TestVerifyReturnsUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"squeeze_bot"}}`))
	}))
	defer srv.Close()

	n, _ := New(Config{APIBase: srv.URL, BotToken: "t", ChatID: "c"})
	name, err := n.Verify(context.Background())
	if err != nil || name != "squeeze_bot" {
		t.Errorf("expected squeeze_bot, got %q (%v)", name, err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{BotToken: "t"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSendTruncatesLongDigest(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	n, _ := New(Config{APIBase: srv.URL, BotToken: "t", ChatID: "c"})
	long := strings.Repeat("  • PEPEUSDT: funding=0.2000%, OI=3.00x 📈\n", 200)
	if err := n.Send(context.Background(), long); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if units := len(utf16.Encode([]rune(gotText))); units > maxText {
		t.Errorf("expected at most %d UTF-16 units, got %d", maxText, units)
	}
	if !strings.HasSuffix(gotText, "…") || !strings.HasPrefix(gotText, "  • PEPEUSDT") {
		t.Errorf("unexpected truncated text %q...", gotText[:40])
	}
}

func TestTruncateKeepsShortText(t *testing.T) {
	if got := truncate("🚨 short", 10); got != "🚨 short" {
		t.Errorf("short text changed: %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("expected abc…, got %q", got)
	}
}
