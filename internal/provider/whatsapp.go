package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultZAPIBaseURL      = "https://api.z-api.io"
	defaultWhatsAppTimeout  = 30 * time.Second
	statusCheckRetryCount   = 3
	statusCheckRetryWait    = 500 * time.Millisecond
	statusCheckRetryMaxWait = 2 * time.Second
)

// ZAPIConfig carries the per-instance Z-API credentials.
type ZAPIConfig struct {
	BaseURL       string
	InstanceID    string
	InstanceToken string
	ClientToken   string
}

func (c ZAPIConfig) validate() error {
	if strings.TrimSpace(c.InstanceID) == "" {
		return fmt.Errorf("z-api instance id is required")
	}
	if strings.TrimSpace(c.InstanceToken) == "" {
		return fmt.Errorf("z-api instance token is required")
	}
	if strings.TrimSpace(c.ClientToken) == "" {
		return fmt.Errorf("z-api client token is required")
	}
	return nil
}

type zapiSendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type zapiButtonAction struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

type zapiButtonActionsRequest struct {
	Phone         string             `json:"phone"`
	Message       string             `json:"message"`
	ButtonActions []zapiButtonAction `json:"buttonActions"`
}

type zapiSendResponse struct {
	ZaapID string `json:"zaapId"`
	Error  string `json:"error"`
}

// InstanceStatus reports the Z-API instance connection state.
type InstanceStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error"`
}

// WhatsAppProvider delivers messages over WhatsApp through a Z-API instance.
// Callback buttons are REPLY buttons whose id carries the action token; the
// platform echoes the id back on the buttonsResponseMessage webhook.
type WhatsAppProvider struct {
	client       *resty.Client
	statusClient *resty.Client
	cfg          ZAPIConfig
}

func NewWhatsAppProvider(cfg ZAPIConfig) (*WhatsAppProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultWhatsAppTimeout)
	client.SetRetryCount(0)

	return NewWhatsAppProviderWithClient(cfg, client)
}

func NewWhatsAppProviderWithClient(cfg ZAPIConfig, client *resty.Client) (*WhatsAppProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultZAPIBaseURL
	}

	// Sends are never retried at the HTTP layer. The status check is an
	// idempotent GET, so it gets its own client with a bounded retry policy.
	client.SetRetryCount(0)
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWhatsAppTimeout)
	}

	statusClient := resty.NewWithClient(client.GetClient())
	statusClient.SetRetryCount(statusCheckRetryCount)
	statusClient.SetRetryWaitTime(statusCheckRetryWait)
	statusClient.SetRetryMaxWaitTime(statusCheckRetryMaxWait)

	return &WhatsAppProvider{
		client:       client,
		statusClient: statusClient,
		cfg:          cfg,
	}, nil
}

func (p *WhatsAppProvider) SendText(ctx context.Context, recipient, text string) (*Receipt, error) {
	return p.post(ctx, "send-text", zapiSendTextRequest{
		Phone:   recipient,
		Message: text,
	})
}

func (p *WhatsAppProvider) SendInteractive(ctx context.Context, recipient, text string, actions []Action) (*Receipt, error) {
	buttons := make([]zapiButtonAction, 0, len(actions))
	for i, action := range actions {
		button := zapiButtonAction{
			ID:    action.Token,
			Label: action.Label,
			Type:  "REPLY",
		}
		if action.URL != "" {
			button.Type = "URL"
			button.URL = action.URL
		}
		if button.ID == "" {
			button.ID = fmt.Sprintf("%d", i+1)
		}
		buttons = append(buttons, button)
	}

	return p.post(ctx, "send-button-actions", zapiButtonActionsRequest{
		Phone:         recipient,
		Message:       text,
		ButtonActions: buttons,
	})
}

// Status checks the instance connection. Safe to retry, unlike sends.
func (p *WhatsAppProvider) Status(ctx context.Context) (*InstanceStatus, error) {
	if p == nil || p.statusClient == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	response, err := p.statusClient.R().
		SetContext(ctx).
		SetHeader("Client-Token", p.cfg.ClientToken).
		Get(p.endpoint("status"))
	if err != nil {
		return nil, &ProviderError{
			Message:   "z-api status request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	if response.StatusCode() != http.StatusOK {
		return nil, &ProviderError{
			StatusCode: response.StatusCode(),
			Message:    providerErrorMessage(response.StatusCode(), strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(response.StatusCode()),
		}
	}

	var status InstanceStatus
	if err := json.Unmarshal(response.Body(), &status); err != nil {
		return nil, fmt.Errorf("failed to decode z-api status response: %w", err)
	}

	return &status, nil
}

func (p *WhatsAppProvider) post(ctx context.Context, endpoint string, body any) (*Receipt, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Client-Token", p.cfg.ClientToken).
		SetBody(body).
		Post(p.endpoint(endpoint))
	if err != nil {
		return nil, &ProviderError{
			Message:   "z-api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		var parsed zapiSendResponse
		_ = json.Unmarshal(response.Body(), &parsed)

		return &Receipt{
			StatusCode:        statusCode,
			Body:              responseBody,
			ProviderMessageID: strings.TrimSpace(parsed.ZaapID),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func (p *WhatsAppProvider) endpoint(path string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s", p.cfg.BaseURL, p.cfg.InstanceID, p.cfg.InstanceToken, path)
}
