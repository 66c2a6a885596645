package handler

import (
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ChatHandler runs chat turns through the router.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/chat", h.Chat)
}

type chatRequest struct {
	Query   string             `json:"query"`
	Model   string             `json:"model"`
	RAG     *bool              `json:"rag"`
	History domain.ChatHistory `json:"history"`
}

type chatResponse struct {
	domain.Reply
	History domain.ChatHistory `json:"history"`
}

// Chat handles one turn. Tool failures still answer 200 with a tagged text.
func (h *ChatHandler) Chat(c fiber.Ctx) error {
	var body chatRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}

	q := domain.NewQuery(body.Query)
	if body.Model != "" {
		if !domain.IsSupportedModel(body.Model) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "unsupported model",
				"models": domain.SupportedModels,
			})
		}
		q.Model = body.Model
	}
	if body.RAG != nil {
		q.UseRAG = *body.RAG
	}

	reply, history := h.chat.Ask(c.Context(), q, body.History)
	return c.JSON(chatResponse{Reply: reply, History: history})
}
