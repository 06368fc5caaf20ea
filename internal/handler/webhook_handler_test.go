package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/service"
	"github.com/oliveiraadan/equibid/internal/transport"
	"go.uber.org/zap"
)

type fakeResolver struct {
	resolveFn func(ctx context.Context, req service.ResolveRequest) (*service.ResolveOutcome, error)
	lastReq   service.ResolveRequest
	calls     int
}

func (f *fakeResolver) Resolve(ctx context.Context, req service.ResolveRequest) (*service.ResolveOutcome, error) {
	f.calls++
	f.lastReq = req
	if f.resolveFn != nil {
		return f.resolveFn(ctx, req)
	}
	return &service.ResolveOutcome{Action: "show_details", Applied: true, Replied: true}, nil
}

func newWebhookApp(t *testing.T, resolver Resolver) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterWebhookRoutes(app, resolver); err != nil {
		t.Fatalf("RegisterWebhookRoutes() error = %v", err)
	}
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func decodeWebhookResponse(t *testing.T, resp *http.Response) webhookResponse {
	t.Helper()

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return out
}

func TestNewWebhookHandler_RequiresResolver(t *testing.T) {
	t.Parallel()

	if _, err := NewWebhookHandler(nil); err == nil {
		t.Fatal("NewWebhookHandler(nil) expected error, got nil")
	}
}

func TestTelegramWebhook_ButtonCallback(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	body := `{
		"update_id": 12,
		"callback_query": {
			"id": "cbq-1",
			"data": "show_details:corr-42",
			"message": {"chat": {"id": 987654321}}
		}
	}`
	resp := postJSON(t, app, "/webhook/telegram", body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resolver.calls != 1 {
		t.Fatalf("resolver calls = %d, want 1", resolver.calls)
	}
	if resolver.lastReq.Channel != domain.ChannelTelegram {
		t.Errorf("channel = %q, want %q", resolver.lastReq.Channel, domain.ChannelTelegram)
	}
	if resolver.lastReq.ReplyTo != "987654321" {
		t.Errorf("replyTo = %q, want %q", resolver.lastReq.ReplyTo, "987654321")
	}
	if resolver.lastReq.Token != "show_details:corr-42" {
		t.Errorf("token = %q, want %q", resolver.lastReq.Token, "show_details:corr-42")
	}

	out := decodeWebhookResponse(t, resp)
	if out.Status != "success" {
		t.Errorf("response status = %q, want %q", out.Status, "success")
	}
}

func TestTelegramWebhook_NonCallbackUpdateIgnored(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	resp := postJSON(t, app, "/webhook/telegram", `{"update_id": 13, "message": {"text": "oi"}}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver calls = %d, want 0", resolver.calls)
	}

	out := decodeWebhookResponse(t, resp)
	if out.Status != "ok" {
		t.Errorf("response status = %q, want %q", out.Status, "ok")
	}
}

func TestTelegramWebhook_MissingChat(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	resp := postJSON(t, app, "/webhook/telegram", `{"callback_query": {"id": "cbq-2", "data": "no_thanks:corr-1"}}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestWhatsAppWebhook_ButtonCallback(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	body := `{
		"phone": "5511999998888",
		"buttonsResponseMessage": {"buttonId": "no_thanks:corr-7", "message": "Não, obrigado"}
	}`
	resp := postJSON(t, app, "/webhook/whatsapp", body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resolver.lastReq.Channel != domain.ChannelWhatsApp {
		t.Errorf("channel = %q, want %q", resolver.lastReq.Channel, domain.ChannelWhatsApp)
	}
	if resolver.lastReq.ReplyTo != "5511999998888" {
		t.Errorf("replyTo = %q, want %q", resolver.lastReq.ReplyTo, "5511999998888")
	}
	if resolver.lastReq.Token != "no_thanks:corr-7" {
		t.Errorf("token = %q, want %q", resolver.lastReq.Token, "no_thanks:corr-7")
	}
}

func TestWhatsAppWebhook_DeliveryReceiptIgnored(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	resp := postJSON(t, app, "/webhook/whatsapp", `{"phone": "5511999998888", "status": "DELIVERED"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestWhatsAppWebhook_MissingPhone(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	app := newWebhookApp(t, resolver)

	resp := postJSON(t, app, "/webhook/whatsapp", `{"buttonsResponseMessage": {"buttonId": "no_thanks:corr-7"}}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestWebhook_ResolverErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "malformed token",
			err:        fmt.Errorf("%w: token has no action separator", domain.ErrValidation),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown correlation id",
			err:        fmt.Errorf("%w: no job for correlation id", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "store failure",
			err:        fmt.Errorf("connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := &fakeResolver{
				resolveFn: func(context.Context, service.ResolveRequest) (*service.ResolveOutcome, error) {
					return nil, tt.err
				},
			}
			app := newWebhookApp(t, resolver)

			body := `{
				"callback_query": {
					"id": "cbq-9",
					"data": "show_details:corr-9",
					"message": {"chat": {"id": 1}}
				}
			}`
			resp := postJSON(t, app, "/webhook/telegram", body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
