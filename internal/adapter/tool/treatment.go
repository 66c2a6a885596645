package tool

import (
	"context"
	"fmt"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
)

const (
	treatmentTopK   = 5
	treatmentSystem = "You are a medically accurate and safety-focused clinical assistant."
)

// TreatmentTool recommends treatment for a described condition, grounded in
// similar discharge notes when retrieval is on.
type TreatmentTool struct {
	embedder  port.Embedder
	store     port.VectorStore
	completer port.Completer
	timeouts  Timeouts
}

func NewTreatmentTool(embedder port.Embedder, store port.VectorStore, completer port.Completer, timeouts Timeouts) *TreatmentTool {
	return &TreatmentTool{embedder: embedder, store: store, completer: completer, timeouts: timeouts}
}

func (t *TreatmentTool) Name() string { return domain.ToolTreatment }
func (t *TreatmentTool) Description() string {
	return "Treatment recommendations grounded in similar discharge notes"
}

func (t *TreatmentTool) Run(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
	var messages []domain.Message
	if req.UseRAG {
		result, err := retrieve(ctx, t.embedder, t.store, t.timeouts.Vector, domain.CollectionDischargeNotes, req.Query, treatmentTopK)
		if err != nil {
			return nil, err
		}
		notes := joinTruncated(result.Texts(), maxContextChars, "\n\n")
		messages = []domain.Message{
			domain.SystemMessage(treatmentSystem),
			domain.AssistantMessage(notes),
			domain.UserMessage(fmt.Sprintf("Patient condition: %s.\n\nBased on the following discharge notes, recommend essential treatment.", req.Query)),
		}
	} else {
		messages = []domain.Message{
			domain.SystemMessage(treatmentSystem),
			domain.UserMessage(fmt.Sprintf("Patient condition: %s. What treatment is recommended?", req.Query)),
		}
	}

	answer, err := complete(ctx, t.completer, t.timeouts.Completion, messages, req.Model)
	if err != nil {
		return nil, err
	}

	resp := &domain.ToolResponse{
		Tool:      t.Name(),
		Body:      answer,
		PoweredBy: t.completer.ProviderName(),
		UsedRAG:   req.UseRAG,
	}
	if req.UseRAG {
		resp.PoweredBy = poweredBy(t.completer.ProviderName(), "RAG")
	}
	return resp, nil
}
