package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTelegramAPIURL  = "https://api.telegram.org"
	defaultTelegramTimeout = 30 * time.Second
)

type telegramButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type telegramReplyMarkup struct {
	InlineKeyboard [][]telegramButton `json:"inline_keyboard"`
}

type telegramSendMessageRequest struct {
	ChatID      string               `json:"chat_id"`
	Text        string               `json:"text"`
	ParseMode   string               `json:"parse_mode"`
	ReplyMarkup *telegramReplyMarkup `json:"reply_markup,omitempty"`
}

type telegramSendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramProvider delivers messages through the Telegram Bot API. Callback
// buttons use callback_data, which Telegram echoes back verbatim on the
// callback_query webhook.
type TelegramProvider struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewTelegramProvider(baseURL, botToken string) (*TelegramProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultTelegramTimeout)
	client.SetRetryCount(0)

	return NewTelegramProviderWithClient(baseURL, botToken, client)
}

func NewTelegramProviderWithClient(baseURL, botToken string, client *resty.Client) (*TelegramProvider, error) {
	trimmedToken := strings.TrimSpace(botToken)
	if trimmedToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = DefaultTelegramAPIURL
	}

	// Sends must never be retried at the HTTP layer; a duplicate POST is a
	// duplicate user-visible message.
	client.SetRetryCount(0)
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTelegramTimeout)
	}

	return &TelegramProvider{
		client:  client,
		baseURL: trimmedBase,
		token:   trimmedToken,
	}, nil
}

func (p *TelegramProvider) SendText(ctx context.Context, recipient, text string) (*Receipt, error) {
	return p.sendMessage(ctx, telegramSendMessageRequest{
		ChatID:    recipient,
		Text:      text,
		ParseMode: "Markdown",
	})
}

func (p *TelegramProvider) SendInteractive(ctx context.Context, recipient, text string, actions []Action) (*Receipt, error) {
	req := telegramSendMessageRequest{
		ChatID:    recipient,
		Text:      text,
		ParseMode: "Markdown",
	}

	if len(actions) > 0 {
		row := make([]telegramButton, 0, len(actions))
		for _, action := range actions {
			row = append(row, telegramButton{
				Text:         action.Label,
				CallbackData: action.Token,
				URL:          action.URL,
			})
		}
		req.ReplyMarkup = &telegramReplyMarkup{InlineKeyboard: [][]telegramButton{row}}
	}

	return p.sendMessage(ctx, req)
}

func (p *TelegramProvider) sendMessage(ctx context.Context, req telegramSendMessageRequest) (*Receipt, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, &ProviderError{Message: "telegram chat id is required", Transient: false}
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token))
	if err != nil {
		return nil, &ProviderError{
			Message:   "telegram request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	var parsed telegramSendMessageResponse
	_ = json.Unmarshal(response.Body(), &parsed)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices && parsed.OK {
		messageID := ""
		if parsed.Result.MessageID != 0 {
			messageID = strconv.FormatInt(parsed.Result.MessageID, 10)
		}
		return &Receipt{
			StatusCode:        statusCode,
			Body:              responseBody,
			ProviderMessageID: messageID,
		}, nil
	}

	message := strings.TrimSpace(parsed.Description)
	if message == "" {
		message = providerErrorMessage(statusCode, responseBody)
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
