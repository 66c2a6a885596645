package handler

import (
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SystemHandler serves health and discovery endpoints.
type SystemHandler struct {
	appName   string
	chat      *service.ChatService
	retrieval *service.RetrievalService
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(appName string, chat *service.ChatService, retrieval *service.RetrievalService) *SystemHandler {
	return &SystemHandler{appName: appName, chat: chat, retrieval: retrieval}
}

// Register sets up system routes.
func (h *SystemHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/models", h.Models)
	router.Get("/tools", h.Tools)
}

// Health reports liveness and the size of each collection.
func (h *SystemHandler) Health(c fiber.Ctx) error {
	counts, err := h.retrieval.Counts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"app":    h.appName,
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"app":         h.appName,
		"collections": counts,
	})
}

// Models lists the selectable completion models.
func (h *SystemHandler) Models(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models":  domain.SupportedModels,
		"default": h.chat.DefaultModel(),
	})
}

// Tools lists the registered tools.
func (h *SystemHandler) Tools(c fiber.Ctx) error {
	tools := h.chat.Tools()
	out := make([]fiber.Map, 0, len(tools))
	for _, t := range tools {
		out = append(out, fiber.Map{"name": t.Name(), "description": t.Description()})
	}
	return c.JSON(fiber.Map{"tools": out})
}
