package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/service"
)

// Resolver is the callback-resolution port the webhook endpoints drive.
type Resolver interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (*service.ResolveOutcome, error)
}

type WebhookHandler struct {
	resolver Resolver
}

func NewWebhookHandler(resolver Resolver) (*WebhookHandler, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	return &WebhookHandler{resolver: resolver}, nil
}

func RegisterWebhookRoutes(router fiber.Router, resolver Resolver) error {
	h, err := NewWebhookHandler(resolver)
	if err != nil {
		return err
	}

	router.Post("/webhook/telegram", h.TelegramWebhook)
	router.Post("/webhook/whatsapp", h.WhatsAppWebhook)

	return nil
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// telegramUpdate is the subset of the Telegram update envelope this engine
// cares about: button clicks arrive as callback_query.
type telegramUpdate struct {
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message *struct {
			Chat *struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// zapiCallback is the Z-API button-reply envelope subset.
type zapiCallback struct {
	Phone                  string `json:"phone"`
	ButtonsResponseMessage *struct {
		ButtonID string `json:"buttonId"`
		Message  string `json:"message"`
	} `json:"buttonsResponseMessage"`
}

func (h *WebhookHandler) TelegramWebhook(c *fiber.Ctx) error {
	var update telegramUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{
			Status:  "error",
			Message: "invalid request body",
		})
	}

	// Non-button updates (plain messages, edits) are acknowledged and
	// dropped; Telegram would otherwise redeliver them forever.
	if update.CallbackQuery == nil {
		return c.Status(fiber.StatusOK).JSON(webhookResponse{
			Status:  "ok",
			Message: "not a button callback, ignoring",
		})
	}

	if update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Chat == nil {
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{
			Status:  "error",
			Message: "callback is missing the originating chat",
		})
	}

	return h.resolve(c, service.ResolveRequest{
		Channel: domain.ChannelTelegram,
		ReplyTo: strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10),
		Token:   update.CallbackQuery.Data,
	})
}

func (h *WebhookHandler) WhatsAppWebhook(c *fiber.Ctx) error {
	var callback zapiCallback
	if err := c.BodyParser(&callback); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{
			Status:  "error",
			Message: "invalid request body",
		})
	}

	if callback.ButtonsResponseMessage == nil {
		return c.Status(fiber.StatusOK).JSON(webhookResponse{
			Status:  "ok",
			Message: "not a button callback, ignoring",
		})
	}

	if strings.TrimSpace(callback.Phone) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{
			Status:  "error",
			Message: "callback is missing the sender phone",
		})
	}

	return h.resolve(c, service.ResolveRequest{
		Channel: domain.ChannelWhatsApp,
		ReplyTo: callback.Phone,
		Token:   callback.ButtonsResponseMessage.ButtonID,
	})
}

func (h *WebhookHandler) resolve(c *fiber.Ctx, req service.ResolveRequest) error {
	outcome, err := h.resolver.Resolve(c.Context(), req)
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(webhookResponse{
			Status:  "error",
			Message: "malformed callback token",
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(webhookResponse{
			Status:  "error",
			Message: "original notification not found",
		})
	case err != nil:
		return err
	}

	return c.Status(fiber.StatusOK).JSON(webhookResponse{
		Status:  "success",
		Message: fmt.Sprintf("action %q processed", outcome.Action),
	})
}
