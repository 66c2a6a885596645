package handler

import (
	"errors"
	"log/slog"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/gofiber/fiber/v3"
)

const defaultRetrieveK = 5

// RetrieveHandler exposes raw similarity search over the collections.
type RetrieveHandler struct {
	retrieval *service.RetrievalService
}

// NewRetrieveHandler creates a new retrieve handler.
func NewRetrieveHandler(retrieval *service.RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{retrieval: retrieval}
}

// Register sets up retrieval routes.
func (h *RetrieveHandler) Register(router fiber.Router) {
	router.Post("/retrieve", h.Retrieve)
}

// Retrieve returns the k documents nearest to the query.
func (h *RetrieveHandler) Retrieve(c fiber.Ctx) error {
	var body struct {
		Collection string `json:"collection"`
		Query      string `json:"query"`
		K          int    `json:"k"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}
	if body.K == 0 {
		body.K = defaultRetrieveK
	}

	result, err := h.retrieval.Retrieve(c.Context(), body.Collection, body.Query, body.K)
	if err != nil {
		status := statusFor(err)
		slog.Error("retrieve failed", "collection", body.Collection, "status", status, "error", err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"collection": result.Collection,
		"documents":  result.Documents,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrUnknownCollection), errors.Is(err, port.ErrDimensionMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, port.ErrModelLoad), errors.Is(err, port.ErrProviderError):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
