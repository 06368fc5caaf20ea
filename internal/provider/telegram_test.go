package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestTelegramProviderSendInteractiveSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody telegramSendMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":4242}}`))
	}))
	defer server.Close()

	p, err := NewTelegramProvider(server.URL, "bot-token-1")
	if err != nil {
		t.Fatalf("NewTelegramProvider() error = %v", err)
	}

	actions := []Action{
		{Label: "Sim, por favor", Token: "show_details:cid-1"},
		{Label: "Nao, obrigado", Token: "no_thanks:cid-1"},
	}

	receipt, err := p.SendInteractive(context.Background(), "123456789", "Encontramos um lote", actions)
	if err != nil {
		t.Fatalf("SendInteractive() unexpected error: %v", err)
	}

	if receipt.ProviderMessageID != "4242" {
		t.Fatalf("ProviderMessageID = %q, want 4242", receipt.ProviderMessageID)
	}
	if !strings.HasSuffix(gotPath, "/botbot-token-1/sendMessage") {
		t.Fatalf("path = %q, want bot token in path", gotPath)
	}
	if gotBody.ChatID != "123456789" {
		t.Fatalf("chat_id = %q, want 123456789", gotBody.ChatID)
	}
	if gotBody.ParseMode != "Markdown" {
		t.Fatalf("parse_mode = %q, want Markdown", gotBody.ParseMode)
	}
	if gotBody.ReplyMarkup == nil || len(gotBody.ReplyMarkup.InlineKeyboard) != 1 {
		t.Fatalf("reply_markup = %+v, want one keyboard row", gotBody.ReplyMarkup)
	}

	row := gotBody.ReplyMarkup.InlineKeyboard[0]
	if len(row) != 2 {
		t.Fatalf("keyboard row has %d buttons, want 2", len(row))
	}
	if row[0].CallbackData != "show_details:cid-1" {
		t.Fatalf("callback_data = %q, want show_details token", row[0].CallbackData)
	}
	if row[1].CallbackData != "no_thanks:cid-1" {
		t.Fatalf("callback_data = %q, want no_thanks token", row[1].CallbackData)
	}
}

func TestTelegramProviderSendTextSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body telegramSendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body.ReplyMarkup != nil {
			t.Error("plain text send should carry no reply markup")
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer server.Close()

	p, err := NewTelegramProvider(server.URL, "bot-token-1")
	if err != nil {
		t.Fatalf("NewTelegramProvider() error = %v", err)
	}

	receipt, err := p.SendText(context.Background(), "123456789", "Tudo bem!")
	if err != nil {
		t.Fatalf("SendText() unexpected error: %v", err)
	}
	if receipt.ProviderMessageID != "7" {
		t.Fatalf("ProviderMessageID = %q, want 7", receipt.ProviderMessageID)
	}
}

func TestTelegramProviderStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		body          string
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, body: `{"ok":false,"description":"Too Many Requests"}`, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, body: `{"ok":false,"description":"Bad Request: chat not found"}`, wantTransient: false},
		{name: "server error is transient", statusCode: http.StatusBadGateway, body: "bad gateway", wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			p, err := NewTelegramProvider(server.URL, "bot-token-1")
			if err != nil {
				t.Fatalf("NewTelegramProvider() error = %v", err)
			}

			_, err = p.SendText(context.Background(), "123456789", "hello")
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("ProviderError.StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestTelegramProviderTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p, err := NewTelegramProviderWithClient(server.URL, "bot-token-1", client)
	if err != nil {
		t.Fatalf("NewTelegramProviderWithClient() error = %v", err)
	}

	_, err = p.SendText(context.Background(), "123456789", "hello")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestNewTelegramProviderRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegramProvider(DefaultTelegramAPIURL, "  "); err == nil {
		t.Fatal("expected error for empty bot token")
	}
}
